package sysync

import "time"

// Clock abstracts time retrieval so business logic is deterministic in tests.
// Archive filenames embed a timestamp from the clock, which also makes the
// storage path unique per backup.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
