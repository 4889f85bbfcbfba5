package extension

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// View is the read-only registry surface the resolvers operate on. The
// resolvers never mutate registry state; status changes are applied by the
// manager after executing a plan step.
type View interface {
	// Info returns the metadata for id. ok is false for unknown ids.
	Info(id string) (Info, bool)
	// Status returns the load state for id. Unknown ids are unloaded.
	Status(id string) Status
	// KnownIDs returns all registered ids in lexical order.
	KnownIDs() []string
}

// entry holds everything the registry tracks per extension.
type entry struct {
	info     Info
	instance Instance
	status   Status
}

// Registry is the keyed store of extension metadata, instance handles,
// and load status. Safe for concurrent reads; writes are serialized.
type Registry struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds an extension. API extensions must carry an instance;
// non-API extensions must not (they are driven through the host load
// callback). Re-registering an unloaded id replaces its metadata and
// instance; active extensions must be unloaded first, otherwise the old
// instance would be dropped without teardown.
func (r *Registry) Register(info Info, inst Instance) error {
	if info.ID == "" {
		return oops.New("extension id cannot be empty")
	}
	if _, err := semver.NewVersion(info.Version); err != nil {
		return oops.With("extension", info.ID).With("version", info.Version).
			Hint("not a semantic version").Wrap(err)
	}
	if info.API && inst == nil {
		return oops.With("extension", info.ID).New("api extension requires an instance")
	}
	if !info.API && inst != nil {
		return oops.With("extension", info.ID).New("non-api extension cannot carry an instance")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[info.ID]; ok && e.status.Active() {
		return oops.With("extension", info.ID).With("status", e.status.String()).
			Hint("unload the extension before re-registering").
			New("cannot re-register an active extension")
	}
	r.entries[info.ID] = &entry{info: info, instance: inst, status: StatusUnloaded}
	return nil
}

// Deregister removes an extension. Active extensions must be unloaded
// first.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return oops.With("extension", id).New("extension is not registered")
	}
	if e.status.Active() {
		return oops.With("extension", id).With("status", e.status.String()).
			New("cannot deregister an active extension")
	}
	delete(r.entries, id)
	return nil
}

// Info returns the metadata for id.
func (r *Registry) Info(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// Status returns the load state for id. Unknown ids report unloaded.
func (r *Registry) Status(id string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return StatusUnloaded
	}
	return e.status
}

// SetStatus records a new load state for id.
func (r *Registry) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return oops.With("extension", id).New("extension is not registered")
	}
	e.status = status
	return nil
}

// Instance returns the structured instance for an API extension, or nil.
func (r *Registry) Instance(id string) Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	return e.instance
}

// KnownIDs returns all registered ids in lexical order.
func (r *Registry) KnownIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
