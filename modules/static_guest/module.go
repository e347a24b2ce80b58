// Package static_guest provisions guests from a fixed, preconfigured pool.
package static_guest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

const name = "static-guest"

// Module registers the static-guest module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Provisions guests from a static pool of machines.",
		Group:       "provision",
		Options: []module.Option{
			{Name: "guest", Short: "g", Kind: module.List, Required: true, Help: "Guest as NAME:ARCH[:COMPOSE]. May be repeated."},
		},
		Shared: []string{capabilities.Provision.Name(), capabilities.ProvisionerCapabilities.Name()},
		New:    func(base *module.Base) module.Module { return &pool{Base: base} },
	})
}

// guest is one machine of the pool.
type guest struct {
	name string
	env  schedule.Environment
	pool *pool
}

func (g *guest) Name() string                      { return g.name }
func (g *guest) Environment() schedule.Environment { return g.env }

// Setup hands the guest to setup_guest when some module provides it.
func (g *guest) Setup(ctx context.Context) error {
	setup, ok := registry.Lookup(g.pool.Registry(), capabilities.SetupGuest)
	if !ok {
		ctxlog.FromContext(ctx).Debug("No setup_guest provider, guest needs no setup", "guest", g.name)
		return nil
	}
	return setup(ctx, g)
}

type pool struct {
	*module.Base

	mu     sync.Mutex
	guests []*guest
	inUse  map[*guest]bool
}

func parseGuest(spec string) (string, schedule.Environment, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", schedule.Environment{}, fmt.Errorf("invalid guest '%s', expected NAME:ARCH[:COMPOSE]", spec)
	}
	env := schedule.Environment{Arch: parts[1], Compose: schedule.Any}
	if len(parts) == 3 && parts[2] != "" {
		env.Compose = parts[2]
	}
	return parts[0], env, nil
}

func (p *pool) Sanity(context.Context) error {
	seen := make(map[string]bool)
	p.guests = nil
	for _, spec := range p.OptionList("guest") {
		guestName, env, err := parseGuest(spec)
		if err != nil {
			return failure.Wrap(failure.KindConfig, err, "module '%s'", name)
		}
		if seen[guestName] {
			return failure.Config("guest '%s' is configured more than once", guestName)
		}
		seen[guestName] = true
		p.guests = append(p.guests, &guest{name: guestName, env: env, pool: p})
	}
	return nil
}

func (p *pool) Execute(context.Context) error {
	p.inUse = make(map[*guest]bool, len(p.guests))
	p.Logger().Info("🖥️ Static guest pool ready", "guests", len(p.guests), "arches", p.capabilities().AvailableArches)
	return nil
}

// provision hands out the first free guest satisfying env. A pool without
// any guest of the requested kind yields a soft error.
func (p *pool) provision(ctx context.Context, env schedule.Environment) (schedule.Guest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	matching := 0
	for _, g := range p.guests {
		if !g.env.Satisfies(env) {
			continue
		}
		matching++
		if p.inUse[g] {
			continue
		}
		p.inUse[g] = true
		ctxlog.FromContext(ctx).Debug("Guest assigned", "guest", g.name, "environment", env.String())
		return g, nil
	}

	if matching == 0 {
		return nil, failure.Soft("no guest available for environment %s", env)
	}
	return nil, failure.Infra("all %d guests matching environment %s are in use", matching, env)
}

func (p *pool) capabilities() capabilities.ArchSupport {
	seen := make(map[string]bool)
	var arches []string
	for _, g := range p.guests {
		if !seen[g.env.Arch] {
			seen[g.env.Arch] = true
			arches = append(arches, g.env.Arch)
		}
	}
	sort.Strings(arches)
	return capabilities.ArchSupport{AvailableArches: arches}
}

func (p *pool) SharedFunctions() []registry.Binding {
	return []registry.Binding{
		capabilities.Provision.Bind(p.provision),
		capabilities.ProvisionerCapabilities.Bind(p.capabilities),
	}
}

// Destroy releases every guest back to the pool.
func (p *pool) Destroy(context.Context, *failure.Failure) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for g := range p.inUse {
		p.Logger().Debug("Releasing guest", "guest", g.name)
	}
	p.inUse = nil
	return nil
}
