package module

import (
	"context"

	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/registry"
)

// Module is the behaviour of a pipeline module. Execute is the only required
// step; the optional ones are expressed by the interfaces below.
type Module interface {
	Execute(ctx context.Context) error
}

// Sanitizer is implemented by modules that validate their options beyond
// "required" before anything executes.
type Sanitizer interface {
	Sanity(ctx context.Context) error
}

// Provider is implemented by modules that publish shared functions. The
// bindings are registered right after Execute succeeds and must match the
// names declared in the module's Descriptor.
type Provider interface {
	SharedFunctions() []registry.Binding
}

// Destroyer is implemented by modules holding resources. Destroy receives
// the failure that ended the pipeline, or nil when it succeeded.
type Destroyer interface {
	Destroy(ctx context.Context, f *failure.Failure) error
}

// Registrar adds one or more module descriptors to a catalog.
type Registrar interface {
	Register(c *Catalog)
}
