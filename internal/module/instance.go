package module

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/specialistvlad/cipipe/internal/config"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/registry"
)

// Instance drives one module through its lifecycle. It is created once per
// pipeline attempt and never reused.
type Instance struct {
	*Base
	module Module
	state  State
}

// Construct builds the module described by desc. The factory receives the
// module's Base and must not perform I/O.
func Construct(desc *Descriptor, env Env) (*Instance, error) {
	base := newBase(desc, env)
	mod := desc.New(base)
	if mod == nil {
		return nil, fmt.Errorf("module '%s' constructor returned nil", desc.Name)
	}
	base.logger.Debug("Module constructed")
	return &Instance{Base: base, module: mod, state: Constructed}, nil
}

// Module returns the wrapped module implementation.
func (i *Instance) Module() Module { return i.module }

// State returns the current lifecycle state.
func (i *Instance) State() State { return i.state }

func (i *Instance) expect(from, to State) error {
	if i.state != from {
		return fmt.Errorf("module '%s': cannot move to %s from %s", i.Name(), to, i.state)
	}
	return nil
}

// LoadOptions applies the persisted configuration of the module on top of
// the compiled-in defaults.
func (i *Instance) LoadOptions(ctx context.Context, src config.Source) error {
	if err := i.expect(Constructed, OptionsLoaded); err != nil {
		return err
	}
	if src != nil {
		values, err := src.ModuleConfig(ctx, i.Name())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, ok := i.desc.option(key); !ok {
				i.logger.Warn("Ignoring unknown option in configuration", "option", key)
				continue
			}
			i.values[key] = values[key]
		}
	}
	i.state = OptionsLoaded
	return nil
}

// ParseArgs applies the command-line arguments of the module's slice. It
// returns pflag.ErrHelp after printing usage when asked for help.
func (i *Instance) ParseArgs(args []string) error {
	if err := i.expect(OptionsLoaded, ArgsParsed); err != nil {
		return err
	}
	fs := i.flagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return failure.Wrap(failure.KindConfig, err, "module '%s'", i.Name())
	}
	if fs.NArg() > 0 {
		return failure.Config("module '%s': unexpected arguments: %s", i.Name(), strings.Join(fs.Args(), " "))
	}
	if err := i.applyFlags(fs); err != nil {
		return failure.Wrap(failure.KindConfig, err, "module '%s'", i.Name())
	}
	if err := i.validateValues(); err != nil {
		return failure.Wrap(failure.KindConfig, err, "module '%s'", i.Name())
	}
	i.state = ArgsParsed
	return nil
}

// Sanity runs the module-specific option checks, if the module has any.
func (i *Instance) Sanity(ctx context.Context) error {
	if err := i.expect(ArgsParsed, SanityChecked); err != nil {
		return err
	}
	if s, ok := i.module.(Sanitizer); ok {
		if err := s.Sanity(ctx); err != nil {
			return err
		}
	}
	i.state = SanityChecked
	return nil
}

// CheckRequiredOptions fails with a configuration error for the first
// required option left empty.
func (i *Instance) CheckRequiredOptions() error {
	if err := i.expect(SanityChecked, RequiredOptionsChecked); err != nil {
		return err
	}
	for _, opt := range i.desc.Options {
		if opt.Required && strings.TrimSpace(i.values[opt.Name]) == "" {
			return failure.Config("Missing required '%s' option", opt.Name)
		}
	}
	i.state = RequiredOptionsChecked
	return nil
}

// Execute runs the module and then publishes its shared functions.
// Required shared functions are checked beforehand, but only warned about;
// modules that cannot work without them call RequireShared themselves.
func (i *Instance) Execute(ctx context.Context) error {
	if err := i.expect(RequiredOptionsChecked, Executing); err != nil {
		return err
	}
	i.state = Executing
	for _, name := range i.Registry().Missing(i.desc.Requires...) {
		i.logger.Warn("Required shared function is not available", "shared_function", name)
	}

	if err := i.module.Execute(ctx); err != nil {
		return err
	}
	if err := i.publish(); err != nil {
		return err
	}
	i.state = Executed
	return nil
}

func (i *Instance) publish() error {
	declared := make(map[string]bool, len(i.desc.Shared))
	for _, name := range i.desc.Shared {
		declared[name] = false
	}

	var bindings []registry.Binding
	if p, ok := i.module.(Provider); ok {
		for _, b := range p.SharedFunctions() {
			if _, ok := declared[b.Name]; !ok {
				return failure.Config("module '%s' provides undeclared shared function '%s'", i.Name(), b.Name)
			}
			if b.Fn == nil {
				return failure.Config("module '%s' provides a nil shared function '%s'", i.Name(), b.Name)
			}
			declared[b.Name] = true
			bindings = append(bindings, b)
		}
	}
	for _, name := range i.desc.Shared {
		if !declared[name] {
			return failure.Config("module '%s' declares shared function '%s' but does not provide it", i.Name(), name)
		}
	}

	for _, b := range bindings {
		i.Registry().Register(b.Name, i, b.Fn)
		i.logger.Debug("Shared function registered", "shared_function", b.Name)
	}
	return nil
}

// Destroy tears the module down. It runs at most once per instance and is
// allowed from every state; f is the failure that ended the pipeline, nil
// on success. The module's shared functions are withdrawn afterwards.
func (i *Instance) Destroy(ctx context.Context, f *failure.Failure) error {
	if i.state == Destroyed {
		return nil
	}
	i.state = Destroyed

	defer func() {
		for _, name := range i.desc.Shared {
			if owner, ok := i.Registry().Resolve(name); ok && owner == i {
				i.Registry().Unregister(name)
			}
		}
	}()

	if d, ok := i.module.(Destroyer); ok {
		return d.Destroy(ctx, f)
	}
	return nil
}

// Prepare runs every step from option loading to the required-option check.
func (i *Instance) Prepare(ctx context.Context, src config.Source, args []string) error {
	if err := i.LoadOptions(ctx, src); err != nil {
		return err
	}
	if err := i.ParseArgs(args); err != nil {
		return err
	}
	if err := i.Sanity(ctx); err != nil {
		return err
	}
	return i.CheckRequiredOptions()
}
