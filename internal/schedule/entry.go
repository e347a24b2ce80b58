package schedule

import (
	"fmt"
	"log/slog"
)

// Stage tracks an entry through provisioning and setup.
type Stage int

const (
	// Created is the stage of a freshly scheduled entry.
	Created Stage = iota
	// Provisioning means a guest has been requested.
	Provisioning
	// Provisioned means the entry owns a guest.
	Provisioned
	// SettingUp means the guest is being prepared.
	SettingUp
	// Ready means the guest is prepared and tests can run.
	Ready
	// Failed means provisioning or setup failed; Err holds the cause.
	Failed
)

func (s Stage) String() string {
	switch s {
	case Created:
		return "created"
	case Provisioning:
		return "provisioning"
	case Provisioned:
		return "provisioned"
	case SettingUp:
		return "setting-up"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Entry is one unit of a test schedule: the environment a test needs, the
// runner capability that will execute it and, once provisioned, the guest it
// runs on.
type Entry struct {
	ID string
	// RunnerCapability names the shared function that runs the tests of this
	// entry.
	RunnerCapability string
	Environment      Environment

	Guest Guest
	Stage Stage
	// Err is the failure that moved the entry to Failed.
	Err error
}

// NewEntry creates an entry in the Created stage.
func NewEntry(id, runner string, env Environment) *Entry {
	return &Entry{ID: id, RunnerCapability: runner, Environment: env, Stage: Created}
}

// Logger returns logger annotated with the entry identity.
func (e *Entry) Logger(logger *slog.Logger) *slog.Logger {
	return logger.With("schedule_entry", e.ID)
}

// GuestName returns the name of the entry's guest, or "<none>".
func (e *Entry) GuestName() string {
	if e.Guest == nil {
		return "<none>"
	}
	return e.Guest.Name()
}
