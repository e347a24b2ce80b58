package module

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/metrics"
	"github.com/specialistvlad/cipipe/internal/registry"
)

// Env is what the runner hands to every module of a pipeline attempt.
type Env struct {
	Registry *registry.Registry
	// RunID identifies the pipeline run; it is the same for every attempt.
	RunID  string
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Out receives user-facing output such as reports and usage text.
	Out io.Writer
}

// Base carries a module's identity, options and access to shared
// functions. Module implementations embed it.
type Base struct {
	desc   *Descriptor
	env    Env
	logger *slog.Logger
	values map[string]string
}

func newBase(desc *Descriptor, env Env) *Base {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if env.Out == nil {
		env.Out = io.Discard
	}
	values := make(map[string]string, len(desc.Options))
	for _, opt := range desc.Options {
		values[opt.Name] = opt.Default
	}
	return &Base{
		desc:   desc,
		env:    env,
		logger: logger.With("module", desc.Name),
		values: values,
	}
}

// Name returns the module name.
func (b *Base) Name() string { return b.desc.Name }

// Descriptor returns the module's descriptor.
func (b *Base) Descriptor() *Descriptor { return b.desc }

// RunID returns the pipeline run identifier.
func (b *Base) RunID() string { return b.env.RunID }

// Logger returns a logger annotated with the module name.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Out returns the writer for user-facing output.
func (b *Base) Out() io.Writer { return b.env.Out }

// Metrics returns the run's collectors. The result may be nil, which the
// collectors accept.
func (b *Base) Metrics() *metrics.Metrics { return b.env.Metrics }

// Registry returns the shared-function registry of the current attempt.
func (b *Base) Registry() *registry.Registry { return b.env.Registry }

// Option returns the raw value of an option.
func (b *Base) Option(name string) string { return b.values[name] }

// OptionBool returns a Bool option. Values are validated while arguments
// are parsed, so an unparsable value cannot reach here.
func (b *Base) OptionBool(name string) bool {
	v, _ := strconv.ParseBool(b.values[name])
	return v
}

// OptionInt returns an Int option, 0 when unset.
func (b *Base) OptionInt(name string) int {
	v, _ := strconv.Atoi(b.values[name])
	return v
}

// OptionList splits a List option on commas, trimming blanks and dropping
// empty items.
func (b *Base) OptionList(name string) []string {
	return SplitList(b.values[name])
}

// SplitList splits a comma-separated value into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// HasShared reports whether a shared function is currently available.
func (b *Base) HasShared(name string) bool {
	return b.env.Registry.Has(name)
}

// Shared calls a shared function by name. A missing function yields an
// error wrapping registry.ErrNoSuchFunction.
func (b *Base) Shared(ctx context.Context, name string, args ...any) (any, error) {
	return b.env.Registry.Call(ctx, name, args...)
}

// RequireShared returns a configuration error naming every shared function
// from names that no module provides.
func (b *Base) RequireShared(names ...string) error {
	missing := b.env.Registry.Missing(names...)
	if len(missing) == 0 {
		return nil
	}
	return failure.Config("module '%s' requires shared functions that are not available: %s", b.desc.Name, strings.Join(missing, ", "))
}
