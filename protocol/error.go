package protocol

import (
	"errors"

	erro "github.com/njones/sioclient/internal/errors"
)

const (
	ErrUnknownType           erro.String = "unknown message type %q"
	ErrInvalidPayload        erro.String = "invalid payload: %s"
	ErrPlaceholderOutOfRange erro.String = "placeholder %d out of range of %d attachments"
	ErrUnexpectedAttachment  erro.String = "binary frame without a pending message"
	ErrTooManyAttachments    erro.String = "more than the %d declared attachments"
	ErrEncode                erro.String = "encode %s: %w"
)

// DecodeError rejects a single frame. It never ends the connection, the frame
// is dropped and reading goes on.
type DecodeError struct {
	Frame string

	errs []error
}

func newDecodeError(frame []byte, kind erro.String, v ...interface{}) DecodeError {
	return DecodeError{Frame: string(frame), errs: []error{kind.F(v...)}}
}

// NewDecodeError builds a DecodeError for a frame rejected outside of Decode.
func NewDecodeError(frame []byte, err error) DecodeError {
	return DecodeError{Frame: string(frame), errs: []error{err}}
}

func (e DecodeError) Error() string {
	if len(e.errs) == 0 {
		return "decode error"
	}
	return "decode: " + e.errs[0].Error()
}

func (e DecodeError) Is(target error) bool {
	for _, err := range e.errs {
		if ok := errors.Is(err, target); ok {
			return true
		}
	}
	return false
}

func (e DecodeError) Unwrap() []error { return e.errs }
