package trafficgen

//
// Port Registry (§4.6): the single source of truth for port and profile
// descriptors, and for live counter snapshots. A map guarded by one mutex,
// with a single exclusive writer path.
//

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// StatsSnapshot is a single, internally-consistent view of every port and
// profile counter, taken at SnapshotAt (§4.6 "a single consistent
// timestamp").
type StatsSnapshot struct {
	SnapshotAt time.Time
	Ports      map[string]PortCounters
	Profiles   map[string]ProfileCounters
}

// Registry owns every Port and Profile known to the core. Mutations
// (create/update/delete/enable/disable) are serialized through mu; reads
// take copy-on-read snapshots and never observe a partial update (§4.6
// Discipline).
type Registry struct {
	mu sync.Mutex

	ports    map[string]*Port
	profiles map[string]*Profile
}

// NewRegistry constructs an empty Registry. Ports are added via AddPort at
// startup, once for each host interface discovered (§6 "Process-wide state
// lifecycle").
func NewRegistry() *Registry {
	return &Registry{
		ports:    make(map[string]*Port),
		profiles: make(map[string]*Profile),
	}
}

// AddPort registers a Port discovered at startup. Ports are never removed
// (§3 "Port ... never destroyed").
func (r *Registry) AddPort(p *Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ports[p.Name] = p
}

// ListPorts returns every known port, sorted by name for stable output.
func (r *Registry) ListPorts() []*Port {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Port, 0, len(r.ports))
	for _, p := range r.ports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetPort returns the named port, or ErrUnknownPort.
func (r *Registry) GetPort(name string) (*Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.ports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}
	return p, nil
}

// ListProfiles returns every known profile, sorted by name.
func (r *Registry) ListProfiles() []*Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor().Name < out[j].Descriptor().Name })
	return out
}

// GetProfile returns the named profile, or ErrUnknownProfile.
func (r *Registry) GetProfile(name string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// CreateProfile validates and inserts a new profile descriptor. It returns
// any non-fatal normalization warning produced by Validate alongside the
// created Profile.
func (r *Registry) CreateProfile(desc ProfileDescriptor) (*Profile, string, error) {
	warning, err := desc.Validate()
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[desc.Name]; exists {
		return nil, "", fmt.Errorf("%w: %s", ErrDuplicateProfile, desc.Name)
	}
	if _, err := r.resolvePortLocked(desc.SrcPort); err != nil {
		return nil, "", err
	}
	if _, err := r.resolvePortLocked(desc.DstPort); err != nil {
		return nil, "", err
	}

	p := NewProfile(desc)
	r.profiles[desc.Name] = p
	return p, warning, nil
}

// resolvePortLocked looks a port up while mu is already held.
func (r *Registry) resolvePortLocked(name string) (*Port, error) {
	p, ok := r.ports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPort, name)
	}
	return p, nil
}

// UpdateProfile applies a change to an existing profile. mutate edits a
// copy of the current descriptor and reports whether it touched a field
// that is immutable while running; callers that need to replace such
// fields must first disable the profile.
//
// When the profile is running, only bandwidth, frame size, and the
// impairment block may be changed (§4.5); touching anything else while
// running returns ErrImmutableWhileRunning.
func (r *Registry) UpdateProfile(name string, mutate func(desc *ProfileDescriptor) (touchesImmutable bool)) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}

	desc := p.Descriptor()
	touchesImmutable := mutate(&desc)

	state, _ := p.State()
	if touchesImmutable && state == ProfileStateRunning {
		return nil, fmt.Errorf("%w: %s", ErrImmutableWhileRunning, name)
	}
	if _, err := desc.Validate(); err != nil {
		return nil, err
	}

	p.replaceDescriptor(desc)
	return p, nil
}

// DeleteProfile removes a profile. Callers are responsible for disabling
// its Runner first (§4.9 "delete_profile: disables if needed, then
// removes").
func (r *Registry) DeleteProfile(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	delete(r.profiles, name)
	return nil
}

// SnapshotStats returns a single, internally-consistent snapshot of every
// port and profile counter (§4.6 "a single consistent timestamp").
func (r *Registry) SnapshotStats() StatsSnapshot {
	r.mu.Lock()
	ports := make([]*Port, 0, len(r.ports))
	for _, p := range r.ports {
		ports = append(ports, p)
	}
	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	r.mu.Unlock()

	snap := StatsSnapshot{
		SnapshotAt: time.Now(),
		Ports:      make(map[string]PortCounters, len(ports)),
		Profiles:   make(map[string]ProfileCounters, len(profiles)),
	}
	for _, p := range ports {
		snap.Ports[p.Name] = p.Counters()
	}
	for _, p := range profiles {
		snap.Profiles[p.Descriptor().Name] = p.Counters()
	}
	return snap
}

// ResetStats zeroes every port and profile counter.
func (r *Registry) ResetStats() {
	r.mu.Lock()
	ports := make([]*Port, 0, len(r.ports))
	for _, p := range r.ports {
		ports = append(ports, p)
	}
	profiles := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	r.mu.Unlock()

	for _, p := range ports {
		p.ResetCounters()
	}
	for _, p := range profiles {
		p.ResetCounters()
	}
}
