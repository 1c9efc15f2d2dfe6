package session

import (
	"fmt"

	"wschat/internal/metrics"
	"wschat/internal/wire"
)

// HandleMessage decodes one inbound frame and dispatches it. Frames that
// fail to decode or validate are dropped and reported through the error
// handler; later frames are unaffected. A panic in the message handler is
// recovered and reported the same way.
//
// Login acks and kills are handled by the session before the frame is
// passed on to the message handler.
func (s *Session) HandleMessage(data []byte) {
	s.mu.Lock()
	closed := s.state == StateClosed
	s.mu.Unlock()
	if closed {
		s.metrics.FrameDropped(metrics.ReasonClosed)
		return
	}

	f, err := wire.DecodeFrame(data)
	if err != nil {
		s.drop(metrics.ReasonDecode, &FrameError{Stage: "decode", Err: err})
		return
	}
	if err := f.Header.Validate(); err != nil {
		s.drop(metrics.ReasonInvalid, &FrameError{Stage: "validate", Header: &f.Header, Err: err})
		return
	}
	s.metrics.FrameReceived(f.Header.MsgType.String(), len(data))
	sesslog.Debug("frame received", "header", f.Header, "bytes", len(data))

	switch f.Header.MsgType {
	case wire.MsgTypeLoginAck:
		if !s.handleLoginAck(f) {
			return
		}
	case wire.MsgTypeKill:
		s.handleKill(f)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(false, f); err != nil {
			sesslog.Warn("recording inbound frame", "header", f.Header, "err", err)
		}
	}
	s.deliver(f)
}

// handleLoginAck records the assigned client id or reports the rejection.
// It returns false when the ack payload is unusable.
func (s *Session) handleLoginAck(f *wire.Frame) bool {
	ack, err := wire.DecodeLoginAck(f.Buffer())
	if err != nil {
		s.drop(metrics.ReasonDecode, &FrameError{Stage: "decode", Header: &f.Header, Err: err})
		return false
	}
	if ack.Status != wire.LoginOK {
		sesslog.Warn("login rejected", "status", ack.Status, "reason", ack.Reason)
		s.report(&LoginError{Status: ack.Status, Reason: ack.Reason})
		return true
	}
	s.mu.Lock()
	s.clientID = ack.ClientID
	s.hasClientID = true
	s.mu.Unlock()
	sesslog.Info("logged in", "identity", s.Identity(), "client_id", ack.ClientID)
	return true
}

func (s *Session) handleKill(f *wire.Frame) {
	k, err := wire.DecodeKill(f.Buffer())
	if err != nil {
		sesslog.Warn("kill frame without peer id", "err", err)
		s.report(ErrKicked)
		return
	}
	sesslog.Warn("kicked", "peer_id", k.PeerID)
	s.report(fmt.Errorf("%w (peer %s)", ErrKicked, k.PeerID))
}

func (s *Session) deliver(f *wire.Frame) {
	s.mu.Lock()
	onMessage := s.onMessage
	s.mu.Unlock()
	if onMessage == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.drop(metrics.ReasonHandler, &FrameError{
				Stage:  "handler",
				Header: &f.Header,
				Err:    fmt.Errorf("panic: %v", r),
			})
		}
	}()
	onMessage(f)
}

func (s *Session) drop(reason string, err *FrameError) {
	s.metrics.FrameDropped(reason)
	sesslog.Warn("dropping inbound frame", "reason", reason, "err", err.Err)
	s.report(err)
}

// report passes err to the error handler, if any.
func (s *Session) report(err error) {
	s.mu.Lock()
	onError := s.onError
	s.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}
