package clock

import "time"

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a plain function to the Clock interface.
// Params: time source function.
// Returns: Clock implementation used by tests and single mode.
type Func func() time.Time

// Now returns the value of the wrapped time source.
// Params: none.
// Returns: current timestamp from the adapted function.
func (f Func) Now() time.Time {
	return f()
}
