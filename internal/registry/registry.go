package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoSuchFunction is returned by Call when no owner provides the requested
// capability.
var ErrNoSuchFunction = errors.New("no such shared function")

// Owner is whatever registered a capability, usually a module instance.
type Owner interface {
	Name() string
}

type entry struct {
	owner Owner
	fn    any
}

// Registry holds the shared functions published during one pipeline attempt.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register associates name with owner and fn, replacing any previous owner.
func (r *Registry) Register(name string, owner Owner, fn any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{owner: owner, fn: fn}
}

// Unregister removes name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Resolve returns the current owner of name.
func (r *Registry) Resolve(name string) (Owner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.owner, ok
}

// Has reports whether name is currently registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// Func returns the raw function registered under name.
func (r *Registry) Func(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.fn, ok
}

// Names returns all registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the names, in the given order, that are not registered.
func (r *Registry) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !r.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
