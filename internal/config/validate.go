package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"wschat/internal/auth"
	"wschat/internal/logging"
	"wschat/internal/wire"
)

// Validate checks every field and reports all problems at once, each
// prefixed with its TOML key.
func (c *Config) Validate() error {
	var errs []error
	add := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	add("server.url", validateServerURL(c.Server.URL))

	if _, ok := wire.CodecByName(c.Client.IDCodec); !ok {
		add("client.id_codec", fmt.Errorf("unknown codec %q (want numeric or codepoint)", c.Client.IDCodec))
	}
	if !auth.Algorithm(c.Client.Digest).Valid() {
		add("client.digest", fmt.Errorf("unknown digest %q (want md5 or blake2b)", c.Client.Digest))
	}
	for i, g := range c.Client.Groups {
		if strings.TrimSpace(g) == "" {
			add(fmt.Sprintf("client.groups[%d]", i), errors.New("empty group name"))
		}
	}

	if c.Peer.WriteWait.Duration <= 0 {
		add("peer.write_wait", fmt.Errorf("must be positive, got %s", c.Peer.WriteWait))
	}
	if c.Peer.PongWait.Duration <= 0 {
		add("peer.pong_wait", fmt.Errorf("must be positive, got %s", c.Peer.PongWait))
	}
	if c.Peer.PingPeriod.Duration <= 0 {
		add("peer.ping_period", fmt.Errorf("must be positive, got %s", c.Peer.PingPeriod))
	} else if c.Peer.PingPeriod.Duration >= c.Peer.PongWait.Duration {
		add("peer.ping_period", fmt.Errorf("must be less than pong_wait (%s)", c.Peer.PongWait))
	}
	if c.Peer.MaxMessageSize < wire.HeaderSize {
		add("peer.max_message_size", fmt.Errorf("must be at least %d, got %d", wire.HeaderSize, c.Peer.MaxMessageSize))
	}
	if c.Peer.SendQueue <= 0 {
		add("peer.send_queue", fmt.Errorf("must be positive, got %d", c.Peer.SendQueue))
	}

	if c.History.Enabled && strings.TrimSpace(c.History.DataDir) == "" {
		add("history.data_dir", errors.New("required when history is enabled"))
	}

	if c.Metrics.Listen != "" {
		add("metrics.listen", validateListenAddr(c.Metrics.Listen))
	}

	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", fmt.Errorf("unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format", fmt.Errorf("unknown format %q (want text or json)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateServerURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme %q is not ws or wss", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateListenAddr(addr string) error {
	addr = strings.TrimSpace(addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return errors.New("empty host")
	}
	if port == "" {
		return errors.New("empty port")
	}
	return nil
}
