package types

import "time"

// Clock abstracts the current time so eligibility and backoff math can be
// tested deterministically. All implementations return UTC.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// NewRealClock returns a Clock backed by the system time.
func NewRealClock() Clock {
	return realClock{}
}
