package pagination

import (
	"errors"
	"fmt"
)

// ErrNoCallback is returned by Run when the pager has no callback.
var ErrNoCallback = errors.New("pager callback is required")

// PageError reports a failed page fetch.
type PageError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}

// CallbackFault is an error returned by a pager callback.
// The controller never retries or suppresses it.
type CallbackFault struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *CallbackFault) Error() string {
	return fmt.Sprintf("pager callback failed on page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CallbackFault) Unwrap() error {
	return e.Err
}
