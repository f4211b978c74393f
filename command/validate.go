package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netforge/trafficgen"
)

// NewValidateConfigCommand returns the "validate-config" subcommand, which
// loads a persisted configuration file and validates every profile
// descriptor it contains without starting any traffic.
func NewValidateConfigCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate a persisted profile configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := trafficgen.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("trafficgen: load config: %w", err)
			}

			seen := make(map[string]bool, len(cfg.Profiles))
			var failures int
			for _, desc := range cfg.Profiles {
				warning, err := desc.Validate()
				if err != nil {
					fmt.Printf("FAIL  %-24s %s\n", desc.Name, err.Error())
					failures++
					continue
				}
				if seen[desc.Name] {
					fmt.Printf("FAIL  %-24s duplicate profile name\n", desc.Name)
					failures++
					continue
				}
				seen[desc.Name] = true
				if warning != "" {
					fmt.Printf("WARN  %-24s %s\n", desc.Name, warning)
				} else {
					fmt.Printf("OK    %-24s\n", desc.Name)
				}
			}

			fmt.Printf("\n%d profile(s), %d failure(s)\n", len(cfg.Profiles), failures)
			if failures > 0 {
				return fmt.Errorf("trafficgen: %d profile(s) failed validation", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/etc/trafficgen/config.yaml", "persisted profile configuration path")
	return cmd
}
