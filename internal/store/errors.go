package store

import "fmt"

// Error is returned by every failing store operation. The previous state of
// the database is unchanged when a write operation fails.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
