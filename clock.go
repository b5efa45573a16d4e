package mediastore

import "time"

// Clock abstracts the current time so expiration behavior can be
// tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock is the Clock used by default everywhere a clock can be
// injected.
var SystemClock Clock = systemClock{}
