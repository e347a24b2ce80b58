package testutil

import (
	"context"
	"sync/atomic"

	"github.com/specialistvlad/cipipe/internal/schedule"
)

// FakeGuest is an in-memory guest counting its setups.
type FakeGuest struct {
	GuestName string
	Env       schedule.Environment
	// SetupErr is returned from every Setup call.
	SetupErr error

	setups atomic.Int32
}

func (g *FakeGuest) Name() string                      { return g.GuestName }
func (g *FakeGuest) Environment() schedule.Environment { return g.Env }

func (g *FakeGuest) Setup(context.Context) error {
	g.setups.Add(1)
	return g.SetupErr
}

// Setups returns how many times Setup was called.
func (g *FakeGuest) Setups() int { return int(g.setups.Load()) }
