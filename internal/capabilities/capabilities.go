// Package capabilities is the table of well-known shared functions: their
// registry names and Go signatures. Modules that provide or consume one of
// these agree on its type through this package instead of importing each
// other.
package capabilities

import (
	"context"

	"github.com/specialistvlad/cipipe/internal/registry"
	"github.com/specialistvlad/cipipe/internal/rules"
	"github.com/specialistvlad/cipipe/internal/schedule"
)

// ProvisionFunc acquires a guest satisfying env. The guest is owned
// exclusively by the caller.
type ProvisionFunc func(ctx context.Context, env schedule.Environment) (schedule.Guest, error)

// ArchSupport describes which architectures a provisioner can offer.
type ArchSupport struct {
	// AvailableArches lists the architectures the provisioner can provide.
	// schedule.Any in the list means any architecture.
	AvailableArches []string
}

// SupportsAnyArch reports whether the provisioner accepts every architecture.
func (c ArchSupport) SupportsAnyArch() bool {
	for _, arch := range c.AvailableArches {
		if arch == schedule.Any {
			return true
		}
	}
	return false
}

// ProvisionerCapabilitiesFunc reports the provisioner capabilities.
type ProvisionerCapabilitiesFunc func() ArchSupport

// CreateTestScheduleFunc builds schedule entries for the given environment
// constraints.
type CreateTestScheduleFunc func(ctx context.Context, constraints []schedule.Environment) (schedule.Schedule, error)

// TestScheduleFunc returns the schedule prepared by the scheduler.
type TestScheduleFunc func() schedule.Schedule

// TestScheduleResultFunc returns the overall result of the test schedule.
type TestScheduleResultFunc func() string

// SetupGuestFunc prepares a provisioned guest for testing.
type SetupGuestFunc func(ctx context.Context, guest schedule.Guest) error

// EvaluateRulesFunc evaluates a rule against vars. A nil vars map means the
// provider should fall back to the eval_context capability.
type EvaluateRulesFunc func(ctx context.Context, rule string, vars map[string]any) (any, error)

// EvaluateInstructionsFunc follows instructions, dispatching commands. A nil
// vars function means the provider should use eval_context.
type EvaluateInstructionsFunc func(
	ctx context.Context,
	instructions []rules.Instruction,
	commands map[string]rules.Command,
	vars func(ctx context.Context) map[string]any,
	opts rules.InstructionOptions,
) error

// EvalContextFunc returns the variables every rule can see.
type EvalContextFunc func(ctx context.Context) map[string]any

var (
	Provision               = registry.NewCapability[ProvisionFunc]("provision")
	ProvisionerCapabilities = registry.NewCapability[ProvisionerCapabilitiesFunc]("provisioner_capabilities")
	CreateTestSchedule      = registry.NewCapability[CreateTestScheduleFunc]("create_test_schedule")
	TestSchedule            = registry.NewCapability[TestScheduleFunc]("test_schedule")
	TestScheduleResult      = registry.NewCapability[TestScheduleResultFunc]("test_schedule_result")
	SetupGuest              = registry.NewCapability[SetupGuestFunc]("setup_guest")
	EvaluateRules           = registry.NewCapability[EvaluateRulesFunc]("evaluate_rules")
	EvaluateInstructions    = registry.NewCapability[EvaluateInstructionsFunc]("evaluate_instructions")
	EvalContext             = registry.NewCapability[EvalContextFunc]("eval_context")
)
