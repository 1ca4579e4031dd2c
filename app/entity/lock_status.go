package entity

const (
	LockStateMissing = "missing"
	LockStateFree    = "free"
	LockStateHeld    = "held"
)

// LockStatus is a point-in-time view of a lock file.
type LockStatus struct {
	Name  string
	Path  string
	State string
	// PID is the holder recorded in the file, 0 when none could be read.
	PID int
}

// Held reports whether another handle held the lock when it was inspected.
func (s LockStatus) Held() bool {
	return s.State == LockStateHeld
}
