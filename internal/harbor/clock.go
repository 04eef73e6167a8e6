package harbor

import "time"

// Clock abstracts time so that collection timestamps and scheduler
// intervals can be controlled in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func NewRealClock() *RealClock { return &RealClock{} }

func (*RealClock) Now() time.Time { return time.Now() }
