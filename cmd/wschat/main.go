package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"wschat/internal/auth"
	"wschat/internal/config"
	"wschat/internal/console"
	"wschat/internal/history"
	"wschat/internal/logging"
	"wschat/internal/metrics"
	"wschat/internal/session"
	boltstore "wschat/internal/store/bolt"
	"wschat/internal/transport"
	"wschat/internal/wire"
)

// stdio joins stdin and stdout for the console.
type stdio struct {
	io.Reader
	io.Writer
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	serverURL := flag.String("url", "", "server websocket URL (overrides config)")
	secret := flag.String("secret", "", "shared login secret (overrides config)")
	identity := flag.String("id", "", "client identity (overrides config)")
	dataDir := flag.String("data-dir", "", "history directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// CLI flags override config file values
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *secret != "" {
		cfg.Server.Secret = *secret
	}
	if *identity != "" {
		cfg.Client.Identity = *identity
	}
	if *dataDir != "" {
		cfg.History.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Client.Identity == "" {
		log.Fatal("config: client.identity is required (or pass -id)")
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	fd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(fd)

	if cfg.Server.Secret == "" && interactive {
		fmt.Fprint(os.Stderr, "Secret: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		cfg.Server.Secret = string(pw)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var hist *history.Log
	opts := append(sessionOptions(cfg), session.WithMetrics(m))
	if cfg.History.Enabled {
		dir := config.ExpandHome(cfg.History.DataDir)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating history dir: %w", err)
		}
		store, err := boltstore.Open(filepath.Join(dir, "history.db"))
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer store.Close()
		codec, _ := wire.CodecByName(cfg.Client.IDCodec)
		hist = history.New(store, history.WithIdentifierCodec(codec))
		opts = append(opts, session.WithRecorder(hist))
	}

	// One nonce serves both the query string and the login frame.
	nonce := auth.NewNonce()
	opts = append(opts, session.WithNonce(func() string { return nonce }))

	conn := transport.New(transport.Options{
		WriteWait:      cfg.Peer.WriteWait.Duration,
		PongWait:       cfg.Peer.PongWait.Duration,
		PingPeriod:     cfg.Peer.PingPeriod.Duration,
		MaxMessageSize: cfg.Peer.MaxMessageSize,
		SendQueue:      cfg.Peer.SendQueue,
	})
	sess, err := session.New(session.Config{URL: cfg.Server.URL, Secret: cfg.Server.Secret}, conn, opts...)
	if err != nil {
		return err
	}

	if interactive {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer func() { _ = term.Restore(fd, old) }()
	}

	var ch console.History
	if hist != nil {
		ch = hist
	}
	con := console.New(stdio{os.Stdin, os.Stdout}, sess, ch)
	con.SetPrompt(cfg.Client.Identity)
	logging.Init(cfg.Logging.Level, cfg.Logging.Format, con.Terminal())

	sess.OnMessage(con.ShowFrame)
	sess.OnError(con.ShowError)
	sess.OnOpen(func() {
		if err := sess.JoinGroups(cfg.Client.Groups...); err != nil {
			con.ShowError(err)
		}
	})
	sess.OnClose(func(err error) {
		if err != nil {
			con.ShowError(fmt.Errorf("disconnected: %w", err))
		}
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.For("metrics").Error("metrics server", "err", err)
			}
		}()
	}

	if err := sess.Login(cfg.Client.Identity); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var query url.Values
	if cfg.Client.AuthInQuery {
		creds, err := auth.SignWithNonce(auth.Algorithm(cfg.Client.Digest), cfg.Client.Identity, nonce, cfg.Server.Secret)
		if err != nil {
			return err
		}
		query = creds.Query()
	}
	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Peer.WriteWait.Duration)
	err = conn.Dial(dialCtx, cfg.Server.URL, query, sess)
	dialCancel()
	if err != nil {
		return err
	}

	consoleDone := make(chan error, 1)
	go func() { consoleDone <- con.Run() }()

	select {
	case err = <-consoleDone:
	case <-conn.Done():
	case <-ctx.Done():
	}

	conn.Close()
	select {
	case <-conn.Done():
	case <-time.After(cfg.Peer.WriteWait.Duration):
	}
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	return err
}

// sessionOptions maps the client config onto session options.
func sessionOptions(cfg *config.Config) []session.Option {
	codec, _ := wire.CodecByName(cfg.Client.IDCodec)
	return []session.Option{
		session.WithIdentifierCodec(codec),
		session.WithDigest(auth.Algorithm(cfg.Client.Digest)),
	}
}
