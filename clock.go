package autoflow

import "time"

// Clock is the time source used for backoff delays, audit timestamps and
// cron evaluation. Injected so tests can run without wall-clock sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall-clock implementation
func SystemClock() Clock {
	return systemClock{}
}
