package eval_context

import (
	"context"
	"os"
	"strings"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
)

const name = "eval-context"

// Module registers the eval-context module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Provides the variables rules are evaluated against.",
		Group:       "rules",
		Options: []module.Option{
			{Name: "var", Short: "v", Kind: module.List, Help: "Extra variable as KEY=VALUE. May be repeated."},
			{Name: "no-environment", Kind: module.Bool, Help: "Do not expose process environment variables as ENV."},
		},
		Shared: []string{capabilities.EvalContext.Name()},
		New:    func(base *module.Base) module.Module { return &evalContext{Base: base} },
	})
}

type evalContext struct {
	*module.Base
	vars map[string]string
}

// Sanity parses --var pairs.
func (m *evalContext) Sanity(context.Context) error {
	m.vars = make(map[string]string)
	for _, pair := range m.OptionList("var") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return failure.Config("invalid variable '%s', expected KEY=VALUE", pair)
		}
		m.vars[key] = value
	}
	return nil
}

func (m *evalContext) Execute(context.Context) error {
	m.Logger().Debug("Evaluation context prepared", "variables", len(m.vars))
	return nil
}

// environment returns the process environment as a map.
func environment() map[string]any {
	env := make(map[string]any)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = pair[1]
		}
	}
	return env
}

// evaluate builds a fresh context on every call so rules see the current
// environment.
func (m *evalContext) evaluate(context.Context) map[string]any {
	vars := map[string]any{
		"PIPELINE_RUN_ID": m.RunID(),
	}
	if !m.OptionBool("no-environment") {
		vars["ENV"] = environment()
	}
	for k, v := range m.vars {
		vars[k] = v
	}
	return vars
}

func (m *evalContext) SharedFunctions() []registry.Binding {
	return []registry.Binding{capabilities.EvalContext.Bind(m.evaluate)}
}
