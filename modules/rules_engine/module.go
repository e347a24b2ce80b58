// Package rules_engine publishes the rule engine to the rest of the pipeline.
package rules_engine

import (
	"context"
	"fmt"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/rules"
)

const name = "rules-engine"

// Module registers the rules-engine module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Evaluates rules and instructions for other modules.",
		Group:       "rules",
		Options: []module.Option{
			{Name: "rule", Help: "Evaluate this rule at execute time and print its value."},
			{Name: "instructions", Help: "Evaluate instructions from this YAML file at execute time, printing every 'log' command."},
		},
		Shared: []string{capabilities.EvaluateRules.Name(), capabilities.EvaluateInstructions.Name()},
		New: func(base *module.Base) module.Module {
			return &engineModule{Base: base, engine: rules.NewEngine()}
		},
	})
}

type engineModule struct {
	*module.Base
	engine *rules.Engine
}

// evalContext returns the variables published by eval_context, or an empty
// namespace when nobody provides them.
func (m *engineModule) evalContext(ctx context.Context) map[string]any {
	if fn, ok := registry.Lookup(m.Registry(), capabilities.EvalContext); ok {
		if vars := fn(ctx); vars != nil {
			return vars
		}
	}
	return map[string]any{}
}

func (m *engineModule) evaluateRules(ctx context.Context, rule string, vars map[string]any) (any, error) {
	if vars == nil {
		vars = m.evalContext(ctx)
	}
	return m.engine.Evaluate(ctx, rule, vars)
}

func (m *engineModule) evaluateInstructions(
	ctx context.Context,
	instructions []rules.Instruction,
	commands map[string]rules.Command,
	vars func(ctx context.Context) map[string]any,
	opts rules.InstructionOptions,
) error {
	if vars == nil {
		vars = m.evalContext
	}
	return m.engine.EvaluateInstructions(ctx, instructions, commands, vars, opts)
}

func (m *engineModule) Execute(ctx context.Context) error {
	if rule := m.Option("rule"); rule != "" {
		value, err := m.evaluateRules(ctx, rule, nil)
		if err != nil {
			return err
		}
		m.Logger().Info("Rule evaluated", "rule", rule, "value", value)
		fmt.Fprintf(m.Out(), "%s => %v\n", rule, value)
	}

	if path := m.Option("instructions"); path != "" {
		instructions, err := rules.LoadInstructions(path)
		if err != nil {
			return err
		}
		commands := map[string]rules.Command{
			"log": func(_ context.Context, _ rules.Instruction, _ string, argument any, _ map[string]any) (bool, error) {
				fmt.Fprintln(m.Out(), argument)
				return true, nil
			},
		}
		opts := rules.InstructionOptions{IgnoreUnhandledCommands: true}
		if err := m.evaluateInstructions(ctx, instructions, commands, nil, opts); err != nil {
			return err
		}
	}
	return nil
}

func (m *engineModule) SharedFunctions() []registry.Binding {
	return []registry.Binding{
		capabilities.EvaluateRules.Bind(m.evaluateRules),
		capabilities.EvaluateInstructions.Bind(m.evaluateInstructions),
	}
}
