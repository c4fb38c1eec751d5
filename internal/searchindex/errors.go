package searchindex

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed = errors.New("malformed search index")
	ErrNoDocs    = errors.New("search index has no docs key")
)

// ParseError reports where in the input decoding failed
type ParseError struct {
	Offset int64 // byte offset into the original input
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed search index at byte %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is lets callers test any parse failure with errors.Is(err, ErrMalformed)
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}
