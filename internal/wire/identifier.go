package wire

import (
	"errors"
	"strconv"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// IdentifierCodec reduces a logical recipient identifier to the 32-bit To
// field. Implementations must fail rather than truncate.
type IdentifierCodec interface {
	EncodeID(id string) (uint32, error)
}

// IdentifierFunc adapts a function to IdentifierCodec.
type IdentifierFunc func(id string) (uint32, error)

func (f IdentifierFunc) EncodeID(id string) (uint32, error) { return f(id) }

// NumericIDs treats identifiers as decimal client IDs ("42" → 42).
type NumericIDs struct{}

func (NumericIDs) EncodeID(id string) (uint32, error) {
	if id == "" {
		return 0, &IdentifierError{ID: id, Reason: "empty"}
	}
	v, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &IdentifierError{ID: id, Reason: "exceeds 32 bits"}
		}
		return 0, &IdentifierError{ID: id, Reason: "not a decimal client id"}
	}
	return uint32(v), nil
}

// CodePointIDs maps a single-character identifier to its Unicode code point
// ("2" → 50). It exists for peers that expect that encoding; identifiers of
// any other length are rejected.
type CodePointIDs struct{}

func (CodePointIDs) EncodeID(id string) (uint32, error) {
	r, size := utf8.DecodeRuneInString(id)
	if size == 0 {
		return 0, &IdentifierError{ID: id, Reason: "empty"}
	}
	if r == utf8.RuneError && size == 1 {
		return 0, &IdentifierError{ID: id, Reason: "invalid UTF-8"}
	}
	if size != len(id) {
		return 0, &IdentifierError{ID: id, Reason: "more than one character"}
	}
	return uint32(r), nil
}

// GroupIDs maps group names to the To field of group frames. Decimal
// names are used as is; any other name becomes the low 32 bits of its
// xxhash64.
type GroupIDs struct{}

func (GroupIDs) EncodeID(name string) (uint32, error) {
	if name == "" {
		return 0, &IdentifierError{ID: name, Reason: "empty"}
	}
	if v, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(v), nil
	}
	if !utf8.ValidString(name) {
		return 0, &IdentifierError{ID: name, Reason: "invalid UTF-8"}
	}
	return uint32(xxhash.Sum64String(name)), nil
}

// CodecByName returns the identifier codec registered under name
// ("numeric" or "codepoint").
func CodecByName(name string) (IdentifierCodec, bool) {
	switch name {
	case "", "numeric":
		return NumericIDs{}, true
	case "codepoint":
		return CodePointIDs{}, true
	default:
		return nil, false
	}
}
