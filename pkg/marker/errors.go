package marker

import (
	"errors"
	"fmt"
)

var (
	ErrFileOpen      = errors.New("open marker file")
	ErrFileCreate    = errors.New("create marker file")
	ErrInvalidFormat = errors.New("invalid marker format")
	ErrSerialization = errors.New("serialize marker")
	ErrWrite         = errors.New("write marker file")
)

var errNullDocument = errors.New("marker document is null")

// Error records a failed marker operation. Kind is one of the Err* sentinels
// and matches through errors.Is; Err is the underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func newError(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// withPath replaces the filesystem-relative name with the caller's path.
func withPath(err error, path string) error {
	var merr *Error
	if errors.As(err, &merr) {
		merr.Path = path
		return merr
	}
	return err
}
