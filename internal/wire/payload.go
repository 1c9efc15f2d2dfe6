package wire

import "fmt"

// Login status codes carried by LoginAck.
const (
	LoginOK       uint8 = 0
	LoginDenied   uint8 = 1 // bad digest or unknown identity
	LoginConflict uint8 = 2 // identity already logged in elsewhere
)

// ChatMessage is the payload of a MsgTypeChat frame.
type ChatMessage struct {
	From  string
	Type  uint8 // content type; 1 is plain text
	Text  string
	Extra string
}

// EncodeTo appends the message to b.
func (m *ChatMessage) EncodeTo(b *Buffer) error {
	if err := b.PutString(m.From); err != nil {
		return err
	}
	b.PutUint8(m.Type)
	return putStrings(b, m.Text, m.Extra)
}

// DecodeChatMessage reads a ChatMessage from b.
func DecodeChatMessage(b *Buffer) (*ChatMessage, error) {
	var m ChatMessage
	var err error
	if m.From, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("chat from: %w", err)
	}
	if m.Type, err = b.GetUint8(); err != nil {
		return nil, fmt.Errorf("chat type: %w", err)
	}
	if m.Text, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("chat text: %w", err)
	}
	if m.Extra, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("chat extra: %w", err)
	}
	return &m, nil
}

// LoginRequest is the payload of the authentication frame. Digest is
// computed from Identity, Nonce and the shared secret; the secret itself is
// never sent.
type LoginRequest struct {
	Identity string
	Nonce    string
	Digest   string
}

func (m *LoginRequest) EncodeTo(b *Buffer) error {
	return putStrings(b, m.Identity, m.Nonce, m.Digest)
}

func DecodeLoginRequest(b *Buffer) (*LoginRequest, error) {
	var m LoginRequest
	var err error
	if m.Identity, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("login identity: %w", err)
	}
	if m.Nonce, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("login nonce: %w", err)
	}
	if m.Digest, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("login digest: %w", err)
	}
	return &m, nil
}

// LoginAck is the server's answer to a LoginRequest.
type LoginAck struct {
	Status   uint8
	ClientID uint32 // numeric id to use as To when addressing this client
	Reason   string
}

func (m *LoginAck) EncodeTo(b *Buffer) error {
	b.PutUint8(m.Status)
	b.PutUint32(m.ClientID)
	return b.PutString(m.Reason)
}

func DecodeLoginAck(b *Buffer) (*LoginAck, error) {
	var m LoginAck
	var err error
	if m.Status, err = b.GetUint8(); err != nil {
		return nil, fmt.Errorf("login ack status: %w", err)
	}
	if m.ClientID, err = b.GetUint32(); err != nil {
		return nil, fmt.Errorf("login ack client id: %w", err)
	}
	if m.Reason, err = b.GetString(); err != nil {
		return nil, fmt.Errorf("login ack reason: %w", err)
	}
	return &m, nil
}

// Kill tells a connection that its identity logged in elsewhere.
type Kill struct {
	PeerID string
}

func (m *Kill) EncodeTo(b *Buffer) error {
	return b.PutString(m.PeerID)
}

func DecodeKill(b *Buffer) (*Kill, error) {
	id, err := b.GetString()
	if err != nil {
		return nil, fmt.Errorf("kill peer id: %w", err)
	}
	return &Kill{PeerID: id}, nil
}

// OfflineNotice tells a sender that the recipient went offline.
type OfflineNotice struct {
	PeerID string
}

func (m *OfflineNotice) EncodeTo(b *Buffer) error {
	return b.PutString(m.PeerID)
}

func DecodeOfflineNotice(b *Buffer) (*OfflineNotice, error) {
	id, err := b.GetString()
	if err != nil {
		return nil, fmt.Errorf("offline peer id: %w", err)
	}
	return &OfflineNotice{PeerID: id}, nil
}

// GroupInOut joins or leaves a set of groups.
type GroupInOut struct {
	Join   bool
	Groups []string
}

func (m *GroupInOut) EncodeTo(b *Buffer) error {
	var in uint8
	if m.Join {
		in = 1
	}
	b.PutUint8(in)
	if err := b.PutUint32Int(int64(len(m.Groups))); err != nil {
		return err
	}
	for _, g := range m.Groups {
		if err := b.PutString(g); err != nil {
			return err
		}
	}
	return nil
}

func DecodeGroupInOut(b *Buffer) (*GroupInOut, error) {
	in, err := b.GetUint8()
	if err != nil {
		return nil, fmt.Errorf("group join flag: %w", err)
	}
	n, err := b.GetUint32()
	if err != nil {
		return nil, fmt.Errorf("group count: %w", err)
	}
	// Every entry needs at least its 4-byte prefix.
	if uint64(n)*4 > uint64(b.Unread()) {
		return nil, &UnderflowError{Field: "group list", Need: int(n) * 4, Have: b.Unread()}
	}
	m := &GroupInOut{Join: in == 1, Groups: make([]string, 0, n)}
	for i := uint32(0); i < n; i++ {
		g, err := b.GetString()
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		m.Groups = append(m.Groups, g)
	}
	return m, nil
}

// putStrings writes each string length-prefixed, in order.
func putStrings(b *Buffer, fields ...string) error {
	for _, f := range fields {
		if err := b.PutString(f); err != nil {
			return err
		}
	}
	return nil
}
