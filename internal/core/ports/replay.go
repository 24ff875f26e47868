package ports

import "time"

// ReplayGuard tracks consumed message and assertion identifiers within their
// validity window. This is the most contention-prone shared state in the
// system: implementations must make check-then-insert a single atomic
// operation and be safe for concurrent use.
type ReplayGuard interface {
	// CheckAndMark returns false if id was already recorded (replay);
	// otherwise it records id until expiry and returns true.
	CheckAndMark(id string, expiry time.Time) bool
}
