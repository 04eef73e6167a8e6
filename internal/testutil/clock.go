package testutil

import "time"

// StubClock is a Clock whose time only moves when told to.
type StubClock struct {
	now time.Time
}

func NewStubClock(start time.Time) *StubClock {
	return &StubClock{now: start}
}

func (c *StubClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
