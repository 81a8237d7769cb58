package clock

import "time"

// Clock abstracts the wall-clock time source so the lifecycle scheduler
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}
