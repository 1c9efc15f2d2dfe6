// Package session implements the client side of the chat protocol on top of
// an externally managed message transport: the login handshake, outbound
// framing and dispatch of inbound frames to registered handlers.
package session

import (
	"errors"
	"fmt"
	"sync"

	"wschat/internal/auth"
	"wschat/internal/logging"
	"wschat/internal/metrics"
	"wschat/internal/wire"
)

var sesslog = logging.For("session")

// Transport delivers complete frames to the peer. Send must not block on
// the network; failures after Send returns surface through the transport's
// own close notification.
type Transport interface {
	Send(data []byte) error
}

// Recorder persists frames that pass through the session.
type Recorder interface {
	Record(outbound bool, f *wire.Frame) error
}

// Config is what the session needs to know about the server.
type Config struct {
	URL    string
	Secret string
}

// State is the session lifecycle position.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option configures a Session.
type Option func(*Session)

// WithIdentifierCodec sets how recipient identifiers map to the To field.
// The default is wire.NumericIDs.
func WithIdentifierCodec(c wire.IdentifierCodec) Option {
	return func(s *Session) { s.codec = c }
}

// WithDigest selects the login digest algorithm (default MD5).
func WithDigest(a auth.Algorithm) Option {
	return func(s *Session) { s.digest = a }
}

// WithNonce replaces the login nonce source.
func WithNonce(fn func() string) Option {
	return func(s *Session) { s.nonce = fn }
}

// WithGroupCodec sets how group names map to the To field of group
// frames. The default is wire.GroupIDs.
func WithGroupCodec(c wire.IdentifierCodec) Option {
	return func(s *Session) { s.groupCodec = c }
}

// WithMetrics counts frames on m. A nil collector records nothing.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

// WithRecorder passes every outbound frame the transport accepted, and
// every dispatched inbound frame, to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

type outFrame struct {
	seq     uint64
	login   bool
	header  wire.Header
	payload []byte
	data    []byte
}

type refusal struct {
	frame outFrame
	err   error
}

// flushResult is what one pass over the queue did.
type flushResult struct {
	sent    []outFrame
	refused []refusal
}

// Session is one logical connection from the client's point of view. It
// does not own the transport: the transport reports its lifecycle through
// HandleConnecting, HandleOpen, HandleMessage and HandleClose.
//
// Frames are handed to the transport only once it is open and the login
// frame has gone out; everything produced earlier waits in a FIFO queue,
// with the login frame always first.
type Session struct {
	cfg       Config
	transport Transport
	codec      wire.IdentifierCodec
	groupCodec wire.IdentifierCodec
	digest     auth.Algorithm
	nonce     func() string
	metrics   *metrics.Collector
	recorder  Recorder

	mu          sync.Mutex
	state       State
	identity    string
	loginSent   bool
	clientID    uint32
	hasClientID bool
	pending     []outFrame
	nextSeq     uint64

	onOpen    func()
	onMessage func(*wire.Frame)
	onError   func(error)
	onClose   func(error)
}

// New returns a session in StateCreated.
func New(cfg Config, t Transport, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	s := &Session{
		cfg:       cfg,
		transport: t,
		codec:      wire.NumericIDs{},
		groupCodec: wire.GroupIDs{},
		digest:     auth.MD5,
		nonce:      auth.NewNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OnOpen sets the handler run each time the transport opens. A later call
// replaces it; nil removes it.
func (s *Session) OnOpen(fn func()) {
	s.mu.Lock()
	s.onOpen = fn
	s.mu.Unlock()
}

// OnMessage sets the handler for inbound frames. The frame's payload
// aliases the transport's buffer and must be copied if retained after the
// handler returns. A later call replaces it; nil removes it.
func (s *Session) OnMessage(fn func(*wire.Frame)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnError sets the handler for errors that have no caller to return to:
// dropped inbound frames, login rejection, kicks and failed flushes.
func (s *Session) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// OnClose sets the handler run once when the session closes.
func (s *Session) OnClose(fn func(error)) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

// Config returns the configuration the session was created with.
func (s *Session) Config() Config {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the identity claimed at Login, or "".
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// ClientID returns the numeric id assigned by the server's login ack.
func (s *Session) ClientID() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID, s.hasClientID
}

// Login queues the authentication frame for identity ahead of every other
// queued frame and sends it as soon as the transport is open.
func (s *Session) Login(identity string) error {
	if identity == "" {
		return errors.New("session: empty identity")
	}
	creds, err := auth.SignWithNonce(s.digest, identity, s.nonce(), s.cfg.Secret)
	if err != nil {
		return err
	}
	req := &wire.LoginRequest{Identity: creds.Identity, Nonce: creds.Nonce, Digest: creds.Digest}
	b := wire.NewBuffer(64)
	if err := req.EncodeTo(b); err != nil {
		s.metrics.EncodeError()
		return fmt.Errorf("encoding login: %w", err)
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loginSent {
		s.mu.Unlock()
		return ErrAlreadyLoggedIn
	}
	s.identity = identity
	s.loginSent = true
	f := s.newFrameLocked(wire.NewHeader(wire.MsgTypeLogin, wire.ScopeClient, 0), b.Bytes())
	f.login = true
	s.pending = append([]outFrame{f}, s.pending...)
	res := s.flushLocked()
	s.mu.Unlock()

	sesslog.Debug("login queued", "identity", identity)
	return s.finish(res, f.seq)
}

// Send frames payload behind h. The header must be valid for the current
// protocol version.
func (s *Session) Send(h wire.Header, payload []byte) error {
	if err := h.Validate(); err != nil {
		s.metrics.EncodeError()
		return err
	}
	return s.send(h, payload)
}

// SendToClient sends payload to a single client. identity is converted to
// the To field by the session's identifier codec.
func (s *Session) SendToClient(identity string, t wire.MsgType, payload []byte) error {
	to, err := s.encodeID(identity)
	if err != nil {
		return err
	}
	return s.send(wire.NewHeader(t, wire.ScopeClient, to), payload)
}

// SendToGroup sends payload to every member of group. The group name is
// converted by the group codec, the same one JoinGroups checks names with.
func (s *Session) SendToGroup(group string, t wire.MsgType, payload []byte) error {
	to, err := s.encodeGroup(group)
	if err != nil {
		return err
	}
	return s.send(wire.NewHeader(t, wire.ScopeGroup, to), payload)
}

// Broadcast sends payload to every connected client.
func (s *Session) Broadcast(t wire.MsgType, payload []byte) error {
	return s.send(wire.NewHeader(t, wire.ScopeBroadcast, 0), payload)
}

// SendChat sends a text chat message from the logged-in identity. to is
// ignored for ScopeBroadcast.
func (s *Session) SendChat(scope wire.Scope, to, text string) error {
	from := s.Identity()
	if from == "" {
		return ErrNotLoggedIn
	}
	b := wire.NewBuffer(len(from) + len(text) + 16)
	msg := &wire.ChatMessage{From: from, Type: 1, Text: text}
	if err := msg.EncodeTo(b); err != nil {
		s.metrics.EncodeError()
		return fmt.Errorf("encoding chat: %w", err)
	}
	switch scope {
	case wire.ScopeClient:
		return s.SendToClient(to, wire.MsgTypeChat, b.Bytes())
	case wire.ScopeGroup:
		return s.SendToGroup(to, wire.MsgTypeChat, b.Bytes())
	case wire.ScopeBroadcast:
		return s.Broadcast(wire.MsgTypeChat, b.Bytes())
	default:
		return fmt.Errorf("%w: %d", wire.ErrUnknownScope, uint8(scope))
	}
}

// JoinGroups asks the server to add this client to groups.
func (s *Session) JoinGroups(groups ...string) error {
	return s.groupInOut(true, groups)
}

// LeaveGroups asks the server to remove this client from groups.
func (s *Session) LeaveGroups(groups ...string) error {
	return s.groupInOut(false, groups)
}

func (s *Session) groupInOut(join bool, groups []string) error {
	if len(groups) == 0 {
		return nil
	}
	for _, g := range groups {
		if _, err := s.encodeGroup(g); err != nil {
			return err
		}
	}
	b := wire.NewBuffer(64)
	if err := (&wire.GroupInOut{Join: join, Groups: groups}).EncodeTo(b); err != nil {
		s.metrics.EncodeError()
		return fmt.Errorf("encoding group change: %w", err)
	}
	return s.send(wire.NewHeader(wire.MsgTypeGroupInOut, wire.ScopeGroup, 0), b.Bytes())
}

func (s *Session) encodeID(id string) (uint32, error) {
	to, err := s.codec.EncodeID(id)
	if err != nil {
		s.metrics.EncodeError()
		return 0, err
	}
	return to, nil
}

func (s *Session) encodeGroup(name string) (uint32, error) {
	to, err := s.groupCodec.EncodeID(name)
	if err != nil {
		s.metrics.EncodeError()
		return 0, err
	}
	return to, nil
}

func (s *Session) send(h wire.Header, payload []byte) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		s.metrics.FrameDropped(metrics.ReasonClosed)
		return ErrClosed
	}
	f := s.newFrameLocked(h, payload)
	s.pending = append(s.pending, f)
	res := s.flushLocked()
	s.mu.Unlock()

	return s.finish(res, f.seq)
}

// newFrameLocked encodes h and payload into a queue entry. Caller holds s.mu.
func (s *Session) newFrameLocked(h wire.Header, payload []byte) outFrame {
	s.nextSeq++
	return outFrame{
		seq:     s.nextSeq,
		header:  h,
		payload: payload,
		data:    wire.EncodeFrame(h, payload),
	}
}

// flushLocked hands queued frames to the transport in order. A refused
// frame is dropped and the rest keep flowing, except when the login frame
// is refused: then nothing else may go out until Login is called again.
// Caller holds s.mu.
func (s *Session) flushLocked() flushResult {
	var res flushResult
	if s.state != StateOpen || !s.loginSent {
		return res
	}
	for len(s.pending) > 0 {
		f := s.pending[0]
		s.pending[0] = outFrame{}
		s.pending = s.pending[1:]
		if err := s.transport.Send(f.data); err != nil {
			s.metrics.FrameDropped(metrics.ReasonOverflow)
			sesslog.Warn("transport refused frame", "type", f.header.MsgType, "err", err)
			res.refused = append(res.refused, refusal{f, fmt.Errorf("sending %s frame: %w", f.header.MsgType, err)})
			if f.login {
				s.loginSent = false
				break
			}
			continue
		}
		s.metrics.FrameSent(f.header.MsgType.String(), len(f.data))
		sesslog.Debug("frame sent", "type", f.header.MsgType, "bytes", len(f.data))
		res.sent = append(res.sent, f)
	}
	return res
}

// finish records the frames a flush handed over and reports refusals. The
// refusal of frame own is returned to the caller instead of reported.
// Must be called without s.mu held.
func (s *Session) finish(res flushResult, own uint64) error {
	if s.recorder != nil {
		for _, f := range res.sent {
			if f.login {
				continue
			}
			if err := s.recorder.Record(true, &wire.Frame{Header: f.header, Payload: f.payload}); err != nil {
				sesslog.Warn("recording outbound frame", "err", err)
			}
		}
	}
	var ownErr error
	for _, r := range res.refused {
		if r.frame.seq == own {
			ownErr = r.err
			continue
		}
		s.report(r.err)
	}
	return ownErr
}

// Pending returns the number of frames waiting for the transport.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// HandleConnecting records that the transport started connecting.
func (s *Session) HandleConnecting() {
	s.mu.Lock()
	if s.state == StateCreated {
		s.state = StateConnecting
	}
	s.mu.Unlock()
}

// HandleOpen moves the session to StateOpen, flushes queued frames and runs
// the open handler. It is a no-op once the session is closed.
func (s *Session) HandleOpen() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateOpen
	res := s.flushLocked()
	onOpen := s.onOpen
	s.mu.Unlock()

	s.metrics.SetConnected(true)
	sesslog.Info("session open", "url", s.cfg.URL)
	_ = s.finish(res, 0)
	if onOpen != nil {
		onOpen()
	}
}

// HandleClose moves the session to StateClosed, discarding queued frames.
// The close handler runs once; later calls are ignored.
func (s *Session) HandleClose(cause error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	dropped := len(s.pending)
	s.pending = nil
	onClose := s.onClose
	s.mu.Unlock()

	for i := 0; i < dropped; i++ {
		s.metrics.FrameDropped(metrics.ReasonClosed)
	}
	s.metrics.SetConnected(false)
	sesslog.Info("session closed", "err", cause, "dropped", dropped)
	if onClose != nil {
		onClose(cause)
	}
}
