package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrRange is matched by every *RangeError.
	ErrRange = errors.New("wire: value out of range")
	// ErrUnderflow is matched by every *UnderflowError.
	ErrUnderflow = errors.New("wire: insufficient data in buffer")
	// ErrIdentifier is matched by every *IdentifierError.
	ErrIdentifier = errors.New("wire: identifier not representable")

	ErrVersionMismatch = errors.New("wire: protocol version mismatch")
	ErrUnknownMsgType  = errors.New("wire: unknown message type")
	ErrUnknownScope    = errors.New("wire: unknown scope")
)

// RangeError reports a value that does not fit the field it was written to.
// Nothing is appended to the buffer when it is returned.
type RangeError struct {
	Field string
	Value int64
	Max   uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("wire: %s value %d out of range [0, %d]", e.Field, e.Value, e.Max)
}

func (e *RangeError) Is(target error) bool { return target == ErrRange }

// UnderflowError reports a read that asked for more bytes than remain.
type UnderflowError struct {
	Field string
	Need  int
	Have  int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("wire: reading %s: need %d bytes, have %d", e.Field, e.Need, e.Have)
}

func (e *UnderflowError) Is(target error) bool { return target == ErrUnderflow }

// IdentifierError reports a recipient identifier that cannot be reduced to
// the 32-bit To field without losing information.
type IdentifierError struct {
	ID     string
	Reason string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("wire: identifier %q: %s", e.ID, e.Reason)
}

func (e *IdentifierError) Is(target error) bool { return target == ErrIdentifier }
