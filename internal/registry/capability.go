package registry

// Capability names a shared function together with its Go signature F, so
// providers and callers agree on the type at compile time.
type Capability[F any] struct {
	name string
}

// NewCapability declares a capability called name with signature F.
func NewCapability[F any](name string) Capability[F] {
	return Capability[F]{name: name}
}

// Name returns the capability name used in the registry.
func (c Capability[F]) Name() string { return c.name }

// Bind pairs fn with the capability name, ready to be published.
func (c Capability[F]) Bind(fn F) Binding {
	return Binding{Name: c.name, Fn: fn}
}

// Binding is a shared function a module offers for publication.
type Binding struct {
	Name string
	Fn   any
}

// Bind creates an untyped binding. Prefer Capability.Bind for well-known
// capabilities.
func Bind(name string, fn any) Binding {
	return Binding{Name: name, Fn: fn}
}

// Lookup returns the function registered for c. It reports false when the
// capability is absent or was registered with a different signature.
func Lookup[F any](r *Registry, c Capability[F]) (F, bool) {
	var zero F
	raw, ok := r.Func(c.name)
	if !ok {
		return zero, false
	}
	fn, ok := raw.(F)
	if !ok {
		return zero, false
	}
	return fn, true
}
