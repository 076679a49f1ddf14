package structuring

import "fmt"

// Error is returned once every structuring attempt has failed. It carries
// only the final attempt's failure.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("structuring failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
