package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed    = errors.New("malformed envelope")
	ErrMissingType  = errors.New("missing type")
	ErrUnknownType  = errors.New("unknown type")
	ErrPayloadShape = errors.New("payload does not match type")
)

// DecodeError describes why a chunk could not be decoded. Kind is one of
// the sentinel errors above and Tag is set once the envelope type is known.
type DecodeError struct {
	Kind  error
	Tag   Tag
	Cause error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Tag != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Tag)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
