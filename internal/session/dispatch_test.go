package session

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wschat/internal/logging"
	"wschat/internal/metrics"
	"wschat/internal/wire"
)

func chatBytes(t *testing.T, from, text string) []byte {
	t.Helper()
	b := wire.NewBuffer(0)
	require.NoError(t, (&wire.ChatMessage{From: from, Type: 1, Text: text}).EncodeTo(b))
	return wire.EncodeFrame(wire.NewHeader(wire.MsgTypeChat, wire.ScopeClient, 1), b.Bytes())
}

func TestTruncatedFrameAfterValidFrame(t *testing.T) {
	s, _ := newTestSession(t)
	s.HandleOpen()

	var got []*wire.Frame
	var errs []error
	s.OnMessage(func(f *wire.Frame) { got = append(got, f) })
	s.OnError(func(err error) { errs = append(errs, err) })

	valid := chatBytes(t, "2", "hello")
	s.HandleMessage(valid)
	require.NotPanics(t, func() { s.HandleMessage(valid[:5]) })

	require.Len(t, got, 1)
	assert.Equal(t, wire.NewHeader(wire.MsgTypeChat, wire.ScopeClient, 1), got[0].Header)

	require.Len(t, errs, 1)
	var fe *FrameError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, "decode", fe.Stage)
	assert.Nil(t, fe.Header)
	assert.ErrorIs(t, errs[0], wire.ErrUnderflow)
}

func TestMessageDeliveredWithPayload(t *testing.T) {
	s, _ := newTestSession(t)
	s.HandleOpen()

	var msg *wire.ChatMessage
	s.OnMessage(func(f *wire.Frame) {
		var err error
		msg, err = wire.DecodeChatMessage(f.Buffer())
		require.NoError(t, err)
	})
	s.HandleMessage(chatBytes(t, "2", "hello"))

	require.NotNil(t, msg)
	assert.Equal(t, "2", msg.From)
	assert.Equal(t, "hello", msg.Text)
}

func TestEmptyPayloadFrame(t *testing.T) {
	s, _ := newTestSession(t)
	var got *wire.Frame
	s.OnMessage(func(f *wire.Frame) { got = f })
	s.HandleMessage(wire.EncodeFrame(wire.NewHeader(wire.MsgTypeOfflineNotice, wire.ScopeClient, 1), nil))

	require.NotNil(t, got)
	assert.Empty(t, got.Payload)
}

func TestInvalidHeaderDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newTestSession(t, WithMetrics(metrics.New(reg)))

	var delivered int
	var errs []error
	s.OnMessage(func(*wire.Frame) { delivered++ })
	s.OnError(func(err error) { errs = append(errs, err) })

	h := wire.NewHeader(wire.MsgTypeChat, wire.ScopeClient, 1)
	h.Version = 9
	s.HandleMessage(wire.EncodeFrame(h, nil))
	s.HandleMessage(wire.EncodeFrame(wire.NewHeader(wire.MsgType(77), wire.ScopeClient, 1), nil))
	s.HandleMessage(wire.EncodeFrame(wire.NewHeader(wire.MsgTypeChat, wire.Scope(0), 1), nil))

	assert.Equal(t, 0, delivered)
	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], wire.ErrVersionMismatch)
	assert.ErrorIs(t, errs[1], wire.ErrUnknownMsgType)
	assert.ErrorIs(t, errs[2], wire.ErrUnknownScope)

	var fe *FrameError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, "validate", fe.Stage)
	require.NotNil(t, fe.Header)
	assert.Equal(t, uint8(9), fe.Header.Version)
}

func TestHandlerPanicRecovered(t *testing.T) {
	s, _ := newTestSession(t)
	c := logging.CaptureForTest()
	defer c.Restore()

	calls := 0
	var errs []error
	s.OnMessage(func(*wire.Frame) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	})
	s.OnError(func(err error) { errs = append(errs, err) })

	require.NotPanics(t, func() {
		s.HandleMessage(chatBytes(t, "2", "a"))
		s.HandleMessage(chatBytes(t, "2", "b"))
	})
	assert.Equal(t, 2, calls)
	require.Len(t, errs, 1)
	var fe *FrameError
	require.ErrorAs(t, errs[0], &fe)
	assert.Equal(t, "handler", fe.Stage)
	assert.Contains(t, fe.Error(), "boom")

	reason, ok := c.AttrOf(slog.LevelWarn, "dropping inbound frame", "reason")
	require.True(t, ok)
	assert.Equal(t, metrics.ReasonHandler, reason)
}

func TestNoMessageHandler(t *testing.T) {
	s, _ := newTestSession(t)
	assert.NotPanics(t, func() { s.HandleMessage(chatBytes(t, "2", "x")) })
}

func TestMessageAfterCloseIgnored(t *testing.T) {
	s, _ := newTestSession(t)
	var delivered int
	s.OnMessage(func(*wire.Frame) { delivered++ })
	s.HandleClose(nil)
	s.HandleMessage(chatBytes(t, "2", "late"))
	assert.Equal(t, 0, delivered)
}

func TestLoginAckAssignsClientID(t *testing.T) {
	s, _ := newTestSession(t)
	s.HandleOpen()
	require.NoError(t, s.Login("1"))

	_, ok := s.ClientID()
	assert.False(t, ok)

	var delivered []wire.MsgType
	s.OnMessage(func(f *wire.Frame) { delivered = append(delivered, f.Header.MsgType) })
	s.HandleMessage(ackFrame(t, &wire.LoginAck{Status: wire.LoginOK, ClientID: 42}))

	id, ok := s.ClientID()
	assert.True(t, ok)
	assert.Equal(t, uint32(42), id)
	assert.Equal(t, []wire.MsgType{wire.MsgTypeLoginAck}, delivered)
}

func TestLoginAckRejected(t *testing.T) {
	s, _ := newTestSession(t)
	s.HandleOpen()
	require.NoError(t, s.Login("1"))

	var errs []error
	s.OnError(func(err error) { errs = append(errs, err) })
	s.HandleMessage(ackFrame(t, &wire.LoginAck{Status: wire.LoginDenied, Reason: "bad digest"}))

	require.Len(t, errs, 1)
	var le *LoginError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, wire.LoginDenied, le.Status)
	assert.Equal(t, "bad digest", le.Reason)
	_, ok := s.ClientID()
	assert.False(t, ok)
}

func TestLoginAckTruncated(t *testing.T) {
	s, _ := newTestSession(t)
	var delivered int
	var errs []error
	s.OnMessage(func(*wire.Frame) { delivered++ })
	s.OnError(func(err error) { errs = append(errs, err) })

	s.HandleMessage(wire.EncodeFrame(wire.NewHeader(wire.MsgTypeLoginAck, wire.ScopeClient, 0), []byte{0, 0}))

	assert.Equal(t, 0, delivered)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], wire.ErrUnderflow)
}

func TestKillReported(t *testing.T) {
	s, _ := newTestSession(t)
	var errs []error
	var delivered int
	s.OnError(func(err error) { errs = append(errs, err) })
	s.OnMessage(func(*wire.Frame) { delivered++ })

	b := wire.NewBuffer(0)
	require.NoError(t, (&wire.Kill{PeerID: "1"}).EncodeTo(b))
	s.HandleMessage(wire.EncodeFrame(wire.NewHeader(wire.MsgTypeKill, wire.ScopeClient, 0), b.Bytes()))

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrKicked)
	assert.Equal(t, 1, delivered)
}

func TestRecorderSeesInboundFrames(t *testing.T) {
	rec := &fakeRecorder{}
	s, _ := newTestSession(t, WithRecorder(rec))
	s.HandleMessage(chatBytes(t, "2", "hi"))
	s.HandleMessage([]byte{1, 2})

	require.Len(t, rec.recs, 1)
	assert.False(t, rec.recs[0].outbound)
}

func TestFrameErrorMessage(t *testing.T) {
	h := wire.NewHeader(wire.MsgTypeChat, wire.ScopeClient, 50)
	err := &FrameError{Stage: "validate", Header: &h, Err: errors.New("bad")}
	assert.Equal(t, "session: dropped frame (v1 Chat/Client to=50) at validate: bad", err.Error())

	err = &FrameError{Stage: "decode", Err: errors.New("short")}
	assert.Equal(t, "session: dropped frame at decode: short", err.Error())
}
