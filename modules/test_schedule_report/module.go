package test_schedule_report

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cipipe/internal/capabilities"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/rules"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

const name = "test-schedule-report"

// Overall schedule results.
const (
	ResultPassed    = "PASSED"
	ResultFailed    = "FAILED"
	ResultError     = "ERROR"
	ResultUndefined = "UNDEFINED"
)

var knownResults = map[string]bool{ResultPassed: true, ResultFailed: true, ResultError: true, ResultUndefined: true}

// Module registers the test-schedule-report module.
type Module struct{}

// Register adds the module descriptor to c.
func (m *Module) Register(c *module.Catalog) {
	c.MustRegister(module.Descriptor{
		Name:        name,
		Description: "Reports the test schedule and its overall result.",
		Group:       "testing",
		Options: []module.Option{
			{Name: "overall-result-map", Kind: module.List, Help: "Instructions files able to overrule the overall result with 'set-result'. May be repeated."},
			{Name: "report-file", Help: "Save the schedule and its result into this YAML file."},
		},
		Shared:   []string{capabilities.TestScheduleResult.Name()},
		Requires: []string{capabilities.TestSchedule.Name()},
		New:      func(base *module.Base) module.Module { return &report{Base: base} },
	})
}

type report struct {
	*module.Base
	instructions []rules.Instruction
	result       string
}

func (m *report) Sanity(context.Context) error {
	m.instructions = nil
	for _, path := range m.OptionList("overall-result-map") {
		instructions, err := rules.LoadInstructions(path)
		if err != nil {
			return err
		}
		m.instructions = append(m.instructions, instructions...)
	}
	return nil
}

// baseResult is UNDEFINED for an empty or unfinished schedule, ERROR when an
// entry failed and PASSED when every entry is ready. The test-scheduler
// module fails before the report runs when one of its entries failed, so
// ERROR only comes from schedules published by other providers of
// test_schedule.
func baseResult(sched schedule.Schedule) string {
	if len(sched) == 0 {
		return ResultUndefined
	}
	if len(sched.InStage(schedule.Failed)) > 0 {
		return ResultError
	}
	if len(sched.InStage(schedule.Ready)) == len(sched) {
		return ResultPassed
	}
	return ResultUndefined
}

func (m *report) overallResult(ctx context.Context, sched schedule.Schedule) (string, error) {
	result := baseResult(sched)
	m.Logger().Debug("Base overall result", "result", result)
	if len(m.instructions) == 0 {
		return result, nil
	}

	follow, ok := registry.Lookup(m.Registry(), capabilities.EvaluateInstructions)
	if !ok {
		return "", failure.Config("module '%s' requires shared function '%s' to apply the overall result map", name, capabilities.EvaluateInstructions.Name())
	}

	vars := func(ctx context.Context) map[string]any {
		out := map[string]any{}
		if evalCtx, ok := registry.Lookup(m.Registry(), capabilities.EvalContext); ok {
			for k, v := range evalCtx(ctx) {
				out[k] = v
			}
		}
		out["CURRENT_RESULT"] = result
		out["ENTRIES"] = len(sched)
		out["FAILED_ENTRIES"] = len(sched.InStage(schedule.Failed))
		return out
	}
	commands := map[string]rules.Command{
		"set-result": func(_ context.Context, _ rules.Instruction, _ string, argument any, _ map[string]any) (bool, error) {
			want := strings.ToUpper(fmt.Sprint(argument))
			if !knownResults[want] {
				return false, failure.Config("unknown result '%s' requested by configuration", want)
			}
			result = want
			return true, nil
		},
	}
	if err := follow(ctx, m.instructions, commands, vars, rules.InstructionOptions{}); err != nil {
		return "", err
	}
	m.Logger().Debug("Custom overall result", "result", result)
	return result, nil
}

type reportEntry struct {
	ID          string `yaml:"id"`
	Runner      string `yaml:"runner"`
	Environment string `yaml:"environment"`
	Guest       string `yaml:"guest"`
	Stage       string `yaml:"stage"`
	Error       string `yaml:"error,omitempty"`
}

type reportDocument struct {
	RunID   string        `yaml:"run_id"`
	Result  string        `yaml:"result"`
	Entries []reportEntry `yaml:"entries"`
}

func (m *report) save(path string, sched schedule.Schedule) error {
	doc := reportDocument{RunID: m.RunID(), Result: m.result, Entries: make([]reportEntry, 0, len(sched))}
	for _, e := range sched {
		entry := reportEntry{
			ID:          e.ID,
			Runner:      e.RunnerCapability,
			Environment: e.Environment.String(),
			Guest:       e.GuestName(),
			Stage:       e.Stage.String(),
		}
		if e.Err != nil {
			entry.Error = e.Err.Error()
		}
		doc.Entries = append(doc.Entries, entry)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return failure.Wrap(failure.KindInfra, err, "failed to save report")
	}
	m.Logger().Info("Report saved", "path", path)
	return nil
}

func (m *report) Execute(ctx context.Context) error {
	var sched schedule.Schedule
	if get, ok := registry.Lookup(m.Registry(), capabilities.TestSchedule); ok {
		sched = get()
	}

	result, err := m.overallResult(ctx, sched)
	if err != nil {
		return err
	}
	m.result = result

	fmt.Fprintln(m.Out(), sched.Render())
	switch result {
	case ResultPassed:
		m.Logger().Info("✅ Result of testing: PASSED")
	case ResultFailed:
		m.Logger().Error("Result of testing: FAILED")
	default:
		m.Logger().Warn("Result of testing: " + result)
	}

	if path := m.Option("report-file"); path != "" {
		return m.save(path, sched)
	}
	return nil
}

func (m *report) overall() string { return m.result }

func (m *report) SharedFunctions() []registry.Binding {
	return []registry.Binding{capabilities.TestScheduleResult.Bind(m.overall)}
}
