package dumper

import (
	"errors"
	"fmt"
)

var (
	// ErrFatalTraversal marks failures that abort a run: the root directory
	// is missing, is not a directory, or cannot be listed.
	ErrFatalTraversal = errors.New("fatal traversal error")
	// ErrInvalidText is reported for files whose bytes are not valid UTF-8.
	ErrInvalidText = errors.New("invalid UTF-8 text")
)

// ReadError is a recoverable failure to read one file. It is written into the
// content dump in place of the file's contents.
type ReadError struct {
	Path string
	Err  error
}

func (readError *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", readError.Path, readError.Err)
}

func (readError *ReadError) Unwrap() error {
	return readError.Err
}

// Placeholder renders the inline text recorded in the content dump.
func (readError *ReadError) Placeholder() string {
	return fmt.Sprintf(readErrorPlaceholderFormat, readError.Err)
}
