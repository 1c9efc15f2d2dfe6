package wire

import "fmt"

const (
	// ProtocolVersion is the only header version this package speaks.
	ProtocolVersion uint8 = 1
	// HeaderFieldCount is the number of fields after Version and
	// FieldCount in a version 1 header (MsgType, Scope, To).
	HeaderFieldCount uint32 = 3
	// HeaderSize is the encoded size of a Header in bytes.
	HeaderSize = 1 + 4 + 1 + 1 + 4
)

// MsgType identifies how a frame's payload is to be interpreted.
type MsgType uint8

const (
	MsgTypeChat          MsgType = 1
	MsgTypeLogin         MsgType = 2
	MsgTypeLoginAck      MsgType = 3
	MsgTypeKill          MsgType = 4 // connection superseded by a newer login
	MsgTypeGroupInOut    MsgType = 5
	MsgTypeOfflineNotice MsgType = 6
)

// Valid reports whether t is one of the defined message types.
func (t MsgType) Valid() bool {
	return t >= MsgTypeChat && t <= MsgTypeOfflineNotice
}

func (t MsgType) String() string {
	switch t {
	case MsgTypeChat:
		return "Chat"
	case MsgTypeLogin:
		return "Login"
	case MsgTypeLoginAck:
		return "LoginAck"
	case MsgTypeKill:
		return "Kill"
	case MsgTypeGroupInOut:
		return "GroupInOut"
	case MsgTypeOfflineNotice:
		return "OfflineNotice"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// Scope is the delivery target class of a frame.
type Scope uint8

const (
	ScopeClient    Scope = 1
	ScopeGroup     Scope = 2
	ScopeBroadcast Scope = 3
)

// Valid reports whether s is one of the defined scopes.
func (s Scope) Valid() bool {
	return s >= ScopeClient && s <= ScopeBroadcast
}

func (s Scope) String() string {
	switch s {
	case ScopeClient:
		return "Client"
	case ScopeGroup:
		return "Group"
	case ScopeBroadcast:
		return "Broadcast"
	default:
		return fmt.Sprintf("Scope(%d)", uint8(s))
	}
}

// Header is the fixed-layout prefix of every frame.
//
// Wire format (11 bytes, big-endian):
//
//	version:u8 fieldCount:u32 msgType:u8 scope:u8 to:u32
type Header struct {
	Version    uint8
	FieldCount uint32 // field-count tag, not a byte length
	MsgType    MsgType
	Scope      Scope
	To         uint32
}

// NewHeader returns a current-version header.
func NewHeader(t MsgType, s Scope, to uint32) Header {
	return Header{
		Version:    ProtocolVersion,
		FieldCount: HeaderFieldCount,
		MsgType:    t,
		Scope:      s,
		To:         to,
	}
}

// Encode appends the header to b. b grows by exactly HeaderSize bytes.
func (h Header) Encode(b *Buffer) {
	b.PutUint8(h.Version)
	b.PutUint32(h.FieldCount)
	b.PutUint8(uint8(h.MsgType))
	b.PutUint8(uint8(h.Scope))
	b.PutUint32(h.To)
}

// Decode reads a header from b's read cursor. Decoding always consumes
// HeaderSize bytes whatever FieldCount says. When fewer bytes are unread,
// Decode fails without touching h or the read cursor.
func (h *Header) Decode(b *Buffer) error {
	if b.Unread() < HeaderSize {
		return &UnderflowError{Field: "header", Need: HeaderSize, Have: b.Unread()}
	}
	var out Header
	// The size check above makes these reads infallible.
	out.Version, _ = b.GetUint8()
	out.FieldCount, _ = b.GetUint32()
	t, _ := b.GetUint8()
	s, _ := b.GetUint8()
	out.MsgType = MsgType(t)
	out.Scope = Scope(s)
	out.To, _ = b.GetUint32()
	*h = out
	return nil
}

// Validate checks the header against the version 1 layout and the closed
// enumerations.
func (h Header) Validate() error {
	if h.Version != ProtocolVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrVersionMismatch, h.Version, ProtocolVersion)
	}
	if h.FieldCount != HeaderFieldCount {
		return fmt.Errorf("%w: field count %d, want %d", ErrVersionMismatch, h.FieldCount, HeaderFieldCount)
	}
	if !h.MsgType.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMsgType, uint8(h.MsgType))
	}
	if !h.Scope.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownScope, uint8(h.Scope))
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("v%d %s/%s to=%d", h.Version, h.MsgType, h.Scope, h.To)
}
