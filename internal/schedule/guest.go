package schedule

import "context"

// Guest is a provisioned machine a test runs on. A guest belongs to exactly
// one schedule entry.
type Guest interface {
	Name() string
	Environment() Environment
	// Setup prepares the guest for running tests.
	Setup(ctx context.Context) error
}
