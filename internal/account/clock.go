package account

import "time"

// Clock abstracts time so every persisted timestamp is deterministic under
// test. Caller-supplied timestamps are never trusted.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }
