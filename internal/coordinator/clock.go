package coordinator

import "time"

// Clock provides time and one-shot timers. Use RealClock in production.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

// RealClock uses the wall clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc runs f in its own goroutine after d.
func (RealClock) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }
