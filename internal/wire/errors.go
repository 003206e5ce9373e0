package wire

import (
	"errors"
	"fmt"
)

// DecodeError reports malformed input. Offset is the absolute byte offset in the
// buffer handed to the decoder.
type DecodeError struct {
	Offset int
	Reason string
	// Truncated is set when the input ended in the middle of a frame; more bytes
	// may complete it.
	Truncated bool
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at byte %d: %s", e.Offset, e.Reason)
}

func errorf(offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func truncated(offset int, what string) *DecodeError {
	return &DecodeError{Offset: offset, Reason: "truncated " + what, Truncated: true}
}

// at turns err into a DecodeError located at offset unless it already is one.
func at(offset int, err error) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Offset: offset, Reason: err.Error()}
}

// IsTruncated reports whether err is a DecodeError caused by incomplete input.
func IsTruncated(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Truncated
}
