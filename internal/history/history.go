// Package history keeps a local log of chat messages sent and received by
// the session, one conversation per peer, group or broadcast channel.
package history

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"wschat/internal/logging"
	"wschat/internal/store"
	"wschat/internal/wire"
)

var hlog = logging.For("history")

// Log records chat frames into a store.Store.
type Log struct {
	store store.Store
	codec wire.IdentifierCodec
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithIdentifierCodec sets the codec that turns a sender identity into the
// client id direct conversations are keyed by. It should match the
// session's codec. The default is wire.NumericIDs.
func WithIdentifierCodec(c wire.IdentifierCodec) Option {
	return func(l *Log) { l.codec = c }
}

// New returns a Log writing to st.
func New(st store.Store, opts ...Option) *Log {
	l := &Log{store: st, codec: wire.NumericIDs{}, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Conversation returns the conversation key for a chat frame. Direct
// messages are keyed by the other party's client id: the To field for
// outbound frames, the encoded sender for inbound ones.
func (l *Log) Conversation(dir Direction, h wire.Header, from string) string {
	switch h.Scope {
	case wire.ScopeGroup:
		return "group:" + strconv.FormatUint(uint64(h.To), 10)
	case wire.ScopeBroadcast:
		return "broadcast"
	default:
		if dir == Outbound {
			return clientKey(h.To)
		}
		return l.ConversationFor(from)
	}
}

// ConversationFor returns the direct conversation key for a peer identity.
// Identities the codec rejects are keyed verbatim.
func (l *Log) ConversationFor(identity string) string {
	id, err := l.codec.EncodeID(identity)
	if err != nil {
		return "client:" + identity
	}
	return clientKey(id)
}

func clientKey(id uint32) string {
	return "client:" + strconv.FormatUint(uint64(id), 10)
}

// Record stores f if it carries a chat message; other frames are ignored.
func (l *Log) Record(outbound bool, f *wire.Frame) error {
	if f.Header.MsgType != wire.MsgTypeChat {
		return nil
	}
	msg, err := wire.DecodeChatMessage(f.Buffer())
	if err != nil {
		return fmt.Errorf("history: decoding chat: %w", err)
	}
	dir := Inbound
	if outbound {
		dir = Outbound
	}
	rec := &Record{
		ID:        uuid.NewString(),
		Direction: dir,
		MsgType:   f.Header.MsgType,
		Scope:     f.Header.Scope,
		To:        f.Header.To,
		From:      msg.From,
		Text:      msg.Text,
		Extra:     msg.Extra,
		At:        l.now(),
	}
	conv := l.Conversation(dir, f.Header, msg.From)
	seq, err := l.store.Append(conv, rec.Marshal())
	if err != nil {
		return fmt.Errorf("history: appending to %s: %w", conv, err)
	}
	hlog.Debug("recorded", "conversation", conv, "seq", seq, "dir", dir)
	return nil
}

// Recent returns up to n most recent records of a conversation, oldest
// first. Undecodable entries are skipped and logged.
func (l *Log) Recent(conversation string, n int) ([]Record, error) {
	entries, err := l.store.Tail(conversation, n)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		var r Record
		if err := r.Unmarshal(e.Value); err != nil {
			hlog.Warn("skipping corrupt record", "conversation", conversation, "seq", e.Seq, "err", err)
			continue
		}
		r.Seq = e.Seq
		out = append(out, r)
	}
	return out, nil
}

// Conversations lists every conversation with at least one record.
func (l *Log) Conversations() ([]string, error) {
	return l.store.Conversations()
}
