package trafficgen

//
// Persisted configuration (§6 "Process-wide state lifecycle"): a JSON or
// YAML file passed on the command line holding the set of profiles to
// recreate at startup in their last-known enabled state, rewritten
// atomically (write-temp-then-rename) on every successful mutation.
//

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the persisted, on-disk shape of the core's profile set. Ports
// are never persisted: they are always re-enumerated from the host at
// startup (§6).
type Config struct {
	Capabilities Capabilities        `json:"capabilities" yaml:"capabilities"`
	Profiles     []ProfileDescriptor `json:"profiles" yaml:"profiles"`
}

// LoadConfig reads a JSON or YAML config from path, selecting the codec by
// file extension (.yaml/.yml -> YAML, anything else -> JSON). A missing
// file is not an error: it yields an empty Config (§6 "or empty if
// absent").
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("trafficgen: read config %s: %w", path, err)
	}

	var cfg Config
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("trafficgen: parse yaml config %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("trafficgen: parse json config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// SaveConfig atomically rewrites path with cfg: it writes to a temporary
// file in the same directory, then renames over the destination, so a
// reader never observes a partially-written config (§6 "write-temp-then-
// rename").
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		return nil
	}

	var raw []byte
	var err error
	if isYAMLPath(path) {
		raw, err = yaml.Marshal(cfg)
	} else {
		raw, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("trafficgen: marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".trafficgen-config-*.tmp")
	if err != nil {
		return fmt.Errorf("trafficgen: create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("trafficgen: write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("trafficgen: close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("trafficgen: rename temp config into place: %w", err)
	}
	return nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
