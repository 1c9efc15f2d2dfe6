// Package transport carries frames between the chat client and the server
// over a websocket connection. It knows nothing about the frame layout; it
// hands whole binary messages to a Handler and writes whatever it is given.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"wschat/internal/logging"
)

var tlog = logging.For("transport")

var (
	ErrSendQueueFull = errors.New("transport: send queue full")
	ErrNotConnected  = errors.New("transport: not connected")
	ErrAlreadyDialed = errors.New("transport: already dialed")
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 20 * time.Second
	defaultPingPeriod     = 10 * time.Second
	defaultMaxMessageSize = 2048
	defaultSendQueue      = 64
)

// Handler receives the connection lifecycle. Calls come from the
// connection's own goroutines.
type Handler interface {
	HandleConnecting()
	HandleOpen()
	HandleMessage(data []byte)
	HandleClose(err error)
}

// Options tune a Conn. Zero fields take the defaults.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendQueue      int
	Header         http.Header
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendQueue <= 0 {
		o.SendQueue = defaultSendQueue
	}
	return o
}

// Conn is a single-use websocket client connection.
type Conn struct {
	opts Options

	ws        *websocket.Conn
	handler   Handler
	dialed    atomic.Bool
	connected atomic.Bool

	sendCh chan []byte // complete frames ready to write
	done   chan struct{}
	closed chan struct{} // closed after HandleClose has run

	closeOnce sync.Once
}

// New returns an unconnected Conn.
func New(opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		opts:   opts,
		sendCh: make(chan []byte, opts.SendQueue),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Dial connects to rawURL, merging query into its query string, and starts
// the read and write loops. h is told about every lifecycle step, including
// a failed dial. Dial returns once the connection is open; the loops run
// until Close or a connection error.
func (c *Conn) Dial(ctx context.Context, rawURL string, query url.Values, h Handler) error {
	if !c.dialed.CompareAndSwap(false, true) {
		return ErrAlreadyDialed
	}
	c.handler = h
	h.HandleConnecting()

	u, err := url.Parse(rawURL)
	if err != nil {
		err = fmt.Errorf("parsing url: %w", err)
		c.fail(err)
		return err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.WriteWait,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), c.opts.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dialing %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dialing %s: %w", u.Redacted(), err)
		}
		c.fail(err)
		return err
	}

	ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	c.ws = ws
	c.connected.Store(true)
	tlog.Info("connected", "url", u.Host+u.Path)

	go c.run()
	h.HandleOpen()
	return nil
}

// fail reports a dial failure and marks the connection finished.
func (c *Conn) fail(err error) {
	c.closeOnce.Do(func() { close(c.done) })
	tlog.Warn("dial failed", "err", err)
	c.handler.HandleClose(err)
	close(c.closed)
}

// Send queues a complete frame for writing. It never blocks.
func (c *Conn) Send(data []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		tlog.Warn("send queue full", "queued", len(c.sendCh))
		return ErrSendQueueFull
	}
}

// Close shuts the connection down. The handler's HandleClose runs from the
// connection goroutine; wait on Done to observe it.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.connected.Store(false)
		if c.ws != nil {
			deadline := time.Now().Add(c.opts.WriteWait)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = c.ws.Close()
		}
	})
}

// Done is closed once the connection has finished and the handler has been
// told.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) run() {
	errc := make(chan error, 2)
	go func() { errc <- c.sendLoop() }()
	go func() { errc <- c.recvLoop() }()

	// The first loop to finish decides the cause.
	err := <-errc
	c.Close()
	<-errc

	tlog.Info("connection closed", "err", err)
	c.handler.HandleClose(err)
	close(c.closed)
}

func (c *Conn) sendLoop() error {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.sendCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				return fmt.Errorf("set write deadline: %w", err)
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return c.loopErr("write message", err)
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return c.loopErr("write ping", err)
			}
		case <-c.done:
			return nil
		}
	}
}

func (c *Conn) recvLoop() error {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				tlog.Debug("server closed connection", "err", err)
				return nil
			}
			return c.loopErr("read message", err)
		}
		if mt != websocket.BinaryMessage {
			tlog.Debug("ignoring non-binary message", "type", mt, "bytes", len(data))
			continue
		}
		c.handler.HandleMessage(data)
	}
}

// loopErr returns nil when err is the result of a local Close.
func (c *Conn) loopErr(op string, err error) error {
	select {
	case <-c.done:
		return nil
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
