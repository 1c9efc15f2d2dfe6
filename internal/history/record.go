package history

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"wschat/internal/wire"
)

// Direction says whether a record was sent or received.
type Direction uint8

const (
	Inbound  Direction = 1
	Outbound Direction = 2
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Record is one stored chat message.
type Record struct {
	ID        string
	Seq       uint64 // assigned by the store; not encoded
	Direction Direction
	MsgType   wire.MsgType
	Scope     wire.Scope
	To        uint32
	From      string
	Text      string
	Extra     string
	At        time.Time
}

// Protobuf field numbers of the stored record.
const (
	fieldID protowire.Number = iota + 1
	fieldDirection
	fieldMsgType
	fieldScope
	fieldTo
	fieldFrom
	fieldText
	fieldExtra
	fieldAtUnixNano
)

var errMalformed = errors.New("history: malformed record")

// Marshal encodes r in protobuf wire format.
func (r *Record) Marshal() []byte {
	var b []byte
	b = appendString(b, fieldID, r.ID)
	b = appendVarint(b, fieldDirection, uint64(r.Direction))
	b = appendVarint(b, fieldMsgType, uint64(r.MsgType))
	b = appendVarint(b, fieldScope, uint64(r.Scope))
	b = appendVarint(b, fieldTo, uint64(r.To))
	b = appendString(b, fieldFrom, r.From)
	b = appendString(b, fieldText, r.Text)
	b = appendString(b, fieldExtra, r.Extra)
	if !r.At.IsZero() {
		b = protowire.AppendTag(b, fieldAtUnixNano, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(r.At.UnixNano()))
	}
	return b
}

// Unmarshal decodes a record written by Marshal. Unknown fields are skipped.
func (r *Record) Unmarshal(b []byte) error {
	*r = Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && isStringField(num):
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(n))
			}
			r.setString(num, v)
			b = b[n:]
		case typ == protowire.VarintType && isVarintField(num):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(n))
			}
			r.setVarint(num, v)
			b = b[n:]
		case typ == protowire.Fixed64Type && num == fieldAtUnixNano:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(n))
			}
			r.At = time.Unix(0, int64(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func isStringField(num protowire.Number) bool {
	return num == fieldID || num == fieldFrom || num == fieldText || num == fieldExtra
}

func isVarintField(num protowire.Number) bool {
	return num >= fieldDirection && num <= fieldTo
}

func (r *Record) setString(num protowire.Number, v string) {
	switch num {
	case fieldID:
		r.ID = v
	case fieldFrom:
		r.From = v
	case fieldText:
		r.Text = v
	case fieldExtra:
		r.Extra = v
	}
}

func (r *Record) setVarint(num protowire.Number, v uint64) {
	switch num {
	case fieldDirection:
		r.Direction = Direction(v)
	case fieldMsgType:
		r.MsgType = wire.MsgType(v)
	case fieldScope:
		r.Scope = wire.Scope(v)
	case fieldTo:
		r.To = uint32(v)
	}
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
