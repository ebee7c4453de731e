package lx16a

import "time"

// Clock supplies the current time for exchange deadlines.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
