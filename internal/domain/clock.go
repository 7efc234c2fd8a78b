package domain

import "time"

// Clock abstracts wall time so the lifecycle boundaries (betting end,
// liveness window) can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
