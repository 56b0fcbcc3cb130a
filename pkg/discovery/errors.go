package discovery

import (
	"errors"
	"fmt"
)

// ErrFetchEntry matches any traversal failure.
var ErrFetchEntry = errors.New("fetch entry")

// Error wraps the traversal failure that aborted discovery.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrFetchEntry, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrFetchEntry
}
