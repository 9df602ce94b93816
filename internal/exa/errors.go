package exa

import "fmt"

// CreateError is fatal: a failed creation aborts the whole invocation.
type CreateError struct {
	StatusCode int
	Body       string
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("webset creation failed: status %d: %s", e.StatusCode, e.Body)
}

// StatusError is tick-local: the caller skips the poll attempt and retries
// on the next tick.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webset status fetch failed: status %d: %s", e.StatusCode, e.Body)
}

// ItemsError is tick-local, same treatment as StatusError.
type ItemsError struct {
	StatusCode int
	Body       string
}

func (e *ItemsError) Error() string {
	return fmt.Sprintf("webset items fetch failed: status %d: %s", e.StatusCode, e.Body)
}
