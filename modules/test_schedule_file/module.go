// Package test_schedule_file builds test schedules from a YAML description:
//
//	# schedule.yaml
//	- id: smoke
//	  runner: run_smoke_tests
//	  rule: ARCH.match('x86_64|aarch64')
//	- id: s390x-only
//	  runner: run_tests
//	  environment:
//	    compose: Fedora-33
//	  rule: ARCH == 's390x'
//
// Every item is combined with every environment constraint it is asked for.
// Item environments fill in what the constraint leaves open, and an item
// whose rule evaluates false for a constraint is skipped.
package test_schedule_file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/rules"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

const name = "test-schedule-file"

// Module registers the test-schedule-file module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Creates test schedule entries from a YAML file.",
		Group:       "testing",
		Options: []module.Option{
			{Name: "schedule", Short: "f", Required: true, Help: "Path to the YAML schedule description."},
		},
		Shared:   []string{capabilities.CreateTestSchedule.Name()},
		Requires: []string{capabilities.EvaluateRules.Name()},
		New:      func(base *module.Base) module.Module { return &scheduleFile{Base: base} },
	})
}

// item is one element of the schedule file.
type item struct {
	ID          string               `yaml:"id"`
	Runner      string               `yaml:"runner"`
	Rule        string               `yaml:"rule"`
	Environment schedule.Environment `yaml:"environment"`
}

type scheduleFile struct {
	*module.Base
	items []item
}

func loadItems(path string) ([]item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfig, err, "failed to read schedule file '%s'", path)
	}
	var items []item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, failure.Wrap(failure.KindConfig, err, "invalid schedule file '%s'", path)
	}

	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, failure.Config("schedule item #%d has no id", i+1)
		}
		if seen[it.ID] {
			return nil, failure.Config("schedule item '%s' is defined more than once", it.ID)
		}
		seen[it.ID] = true
		if it.Rule != "" {
			if err := rules.New(it.Rule).Compile(); err != nil {
				return nil, fmt.Errorf("schedule item '%s': %w", it.ID, err)
			}
		}
	}
	return items, nil
}

func (m *scheduleFile) Execute(context.Context) error {
	items, err := loadItems(m.Option("schedule"))
	if err != nil {
		return err
	}
	m.items = items
	m.Logger().Info("Test schedule description loaded", "items", len(items))
	return nil
}

// merge fills the properties c leaves open with those of the item.
func merge(c, own schedule.Environment) schedule.Environment {
	if c.Arch == "" || c.Arch == schedule.Any {
		if own.Arch != "" {
			c.Arch = own.Arch
		}
	}
	if c.Compose == "" || c.Compose == schedule.Any {
		if own.Compose != "" {
			c.Compose = own.Compose
		}
	}
	return c
}

func (m *scheduleFile) create(ctx context.Context, constraints []schedule.Environment) (schedule.Schedule, error) {
	var evaluate capabilities.EvaluateRulesFunc
	var sched schedule.Schedule

	for _, c := range constraints {
		for _, it := range m.items {
			if !c.Satisfies(it.Environment) {
				continue
			}
			env := merge(c, it.Environment)

			if it.Rule != "" {
				if evaluate == nil {
					if err := m.RequireShared(capabilities.EvaluateRules.Name()); err != nil {
						return nil, err
					}
					fn, ok := registry.Lookup(m.Registry(), capabilities.EvaluateRules)
					if !ok {
						return nil, failure.Config("shared function '%s' has an unexpected signature", capabilities.EvaluateRules.Name())
					}
					evaluate = fn
				}
				vars := map[string]any{"ARCH": env.Arch, "COMPOSE": env.Compose}
				if evalCtx, ok := registry.Lookup(m.Registry(), capabilities.EvalContext); ok {
					for k, v := range evalCtx(ctx) {
						if _, taken := vars[k]; !taken {
							vars[k] = v
						}
					}
				}
				value, err := evaluate(ctx, it.Rule, vars)
				if err != nil {
					return nil, fmt.Errorf("schedule item '%s': %w", it.ID, err)
				}
				if !rules.Truthy(value) {
					m.Logger().Debug("Schedule item skipped by rule", "item", it.ID, "environment", env.String())
					continue
				}
			}

			id := fmt.Sprintf("%s:%s", it.ID, env.Arch)
			sched = append(sched, schedule.NewEntry(id, it.Runner, env))
		}
	}
	return sched, nil
}

func (m *scheduleFile) SharedFunctions() []registry.Binding {
	return []registry.Binding{capabilities.CreateTestSchedule.Bind(m.create)}
}
