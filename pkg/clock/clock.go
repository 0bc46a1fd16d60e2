// Package clock abstracts time for code that stamps records, so tests
// can freeze now.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock that always returns the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) Fixed {
	return Fixed{T: t}
}
