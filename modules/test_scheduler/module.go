// Package test_scheduler prepares the test schedule: it decides which
// architectures to test, asks for schedule entries and provisions and sets
// up a guest for each of them.
package test_scheduler

import (
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/schedule"
	"github.com/specialistvlad/cipipe/internal/scheduler"
)

const (
	name = "test-scheduler"

	// noarch artifacts can be tested on any architecture.
	noarch = "noarch"
)

// Module registers the test-scheduler module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Prepares the test schedule and a ready guest for every entry.",
		Group:       "testing",
		Options: []module.Option{
			{Name: "arch", Short: "a", Kind: module.List, Required: true, Help: "Architectures of the artifact under test. May be repeated."},
			{Name: "arch-compatibility-map", Help: "YAML file mapping artifact arches to the arches able to test them, e.g. 'i686: [x86_64]'."},
		},
		Shared: []string{capabilities.TestSchedule.Name()},
		Requires: []string{
			capabilities.Provision.Name(),
			capabilities.ProvisionerCapabilities.Name(),
			capabilities.CreateTestSchedule.Name(),
		},
		New: func(base *module.Base) module.Module { return &testScheduler{Base: base} },
	})
}

type testScheduler struct {
	*module.Base
	compatibility map[string][]string
	schedule      schedule.Schedule
}

func (m *testScheduler) Sanity(context.Context) error {
	path := m.Option("arch-compatibility-map")
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failure.Wrap(failure.KindConfig, err, "failed to read arch compatibility map")
	}
	if err := yaml.Unmarshal(data, &m.compatibility); err != nil {
		return failure.Wrap(failure.KindConfig, err, "invalid arch compatibility map '%s'", path)
	}
	return nil
}

// validArches picks the artifact arches the provisioner can test, directly
// or through a compatible arch. An empty, nil-error result means any arch.
func (m *testScheduler) validArches(artifact []string, support capabilities.ArchSupport) ([]string, error) {
	logger := m.Logger()

	var valid []string
	if support.SupportsAnyArch() {
		valid = append(valid, artifact...)
	} else {
		supported := make(map[string]bool, len(support.AvailableArches))
		for _, arch := range support.AvailableArches {
			supported[arch] = true
		}
		for _, arch := range artifact {
			if supported[arch] {
				valid = append(valid, arch)
				continue
			}
			var compatible []string
			for _, other := range m.compatibility[arch] {
				if supported[other] {
					compatible = append(compatible, other)
				}
			}
			if len(compatible) > 0 {
				logger.Warn("Artifact arch not supported but compatible", "arch", arch, "compatible", strings.Join(compatible, ", "))
				valid = append(valid, arch)
			}
		}
	}
	logger.Debug("Valid artifact arches", "arches", valid)

	if len(valid) == 0 {
		return nil, failure.Soft("Task does not have any testable artifact - %s arches are not supported", strings.Join(artifact, ", "))
	}

	if len(valid) == 1 && valid[0] == noarch {
		if support.SupportsAnyArch() {
			return nil, nil
		}
		return append([]string(nil), support.AvailableArches...), nil
	}

	out := valid[:0]
	for _, arch := range valid {
		if arch != noarch {
			out = append(out, arch)
		}
	}
	return out, nil
}

func (m *testScheduler) Execute(ctx context.Context) error {
	if err := m.RequireShared(capabilities.Provision.Name(), capabilities.CreateTestSchedule.Name()); err != nil {
		return err
	}
	provision, ok := registry.Lookup(m.Registry(), capabilities.Provision)
	if !ok {
		return failure.Config("shared function '%s' has an unexpected signature", capabilities.Provision.Name())
	}
	create, ok := registry.Lookup(m.Registry(), capabilities.CreateTestSchedule)
	if !ok {
		return failure.Config("shared function '%s' has an unexpected signature", capabilities.CreateTestSchedule.Name())
	}

	var support capabilities.ArchSupport
	if caps, ok := registry.Lookup(m.Registry(), capabilities.ProvisionerCapabilities); ok {
		support = caps()
	}
	m.Logger().Debug("Provisioner capabilities", "arches", support.AvailableArches)

	arches, err := m.validArches(unique(m.OptionList("arch")), support)
	if err != nil {
		return err
	}

	constraints := make([]schedule.Environment, 0, len(arches))
	for _, arch := range arches {
		constraints = append(constraints, schedule.Environment{Arch: arch, Compose: schedule.Any})
	}
	if len(constraints) == 0 {
		constraints = append(constraints, schedule.Environment{Arch: schedule.Any, Compose: schedule.Any})
	}

	sched, err := create(ctx, constraints)
	if err != nil {
		return err
	}
	if len(sched) == 0 {
		return failure.Infra("Test schedule is empty")
	}

	m.Logger().Info("📋 Assigning guests to a test schedule", "entries", len(sched))
	sched.Log(m.Logger(), "schedule")

	s := scheduler.New(provision, scheduler.WithMetrics(m.Metrics()))
	m.schedule, err = s.Run(ctx, sched)
	sched.Log(m.Logger(), "final schedule")
	return err
}

// unique drops repeated values, keeping the first occurrence.
func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (m *testScheduler) testSchedule() schedule.Schedule { return m.schedule }

func (m *testScheduler) SharedFunctions() []registry.Binding {
	return []registry.Binding{capabilities.TestSchedule.Bind(m.testSchedule)}
}
