package config

import (
	"strings"
	"testing"
	"time"
)

const errExpectedValErr = "expected validation error"

func TestConfigValidate_ServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"ws", "ws://localhost:8080/client", false},
		{"wss", "wss://chat.example.com", false},
		{"empty", "", true},
		{"http scheme", "http://localhost:8080", true},
		{"no host", "ws:///client", true},
		{"garbage", "::not a url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Server.URL = tt.url
			err := cfg.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal(errExpectedValErr)
			}
			if !strings.Contains(err.Error(), "server.url") {
				t.Errorf("error should mention 'server.url': %v", err)
			}
		})
	}
}

func TestConfigValidate_ClientEnums(t *testing.T) {
	cfg := Defaults()
	cfg.Client.IDCodec = "hash"
	cfg.Client.Digest = "sha1"
	cfg.Client.Groups = []string{"ok", "  "}

	err := cfg.Validate()
	if err == nil {
		t.Fatal(errExpectedValErr)
	}
	for _, want := range []string{"client.id_codec", "client.digest", "client.groups[1]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestConfigValidate_PeerTimings(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*PeerConfig)
		key  string
	}{
		{"zero write wait", func(p *PeerConfig) { p.WriteWait = Duration{} }, "peer.write_wait"},
		{"negative pong wait", func(p *PeerConfig) { p.PongWait = Duration{-time.Second} }, "peer.pong_wait"},
		{"ping not below pong", func(p *PeerConfig) { p.PingPeriod = p.PongWait }, "peer.ping_period"},
		{"tiny max message", func(p *PeerConfig) { p.MaxMessageSize = 4 }, "peer.max_message_size"},
		{"zero send queue", func(p *PeerConfig) { p.SendQueue = 0 }, "peer.send_queue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mut(&cfg.Peer)
			err := cfg.Validate()
			if err == nil {
				t.Fatal(errExpectedValErr)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should mention %q: %v", tt.key, err)
			}
		})
	}
}

func TestConfigValidate_HistoryNeedsDataDir(t *testing.T) {
	cfg := Defaults()
	cfg.History.DataDir = " "
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "history.data_dir") {
		t.Fatalf("expected history.data_dir error, got %v", err)
	}

	cfg.History.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled history needs no data dir: %v", err)
	}
}

func TestConfigValidate_MultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.URL = "tcp://x"
	cfg.Metrics.Listen = "no-port"
	cfg.Logging.Level = "invalid-level"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal(errExpectedValErr)
	}
	for _, want := range []string{"server.url", "metrics.listen", "logging.level", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"127.0.0.1:9108", false},
		{"localhost:8080", false},
		{"  127.0.0.1:8080  ", false},
		{"[::1]:9000", false},
		{"no-port", true},
		{"", true},
		{":8080", true},
		{"host:", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := validateListenAddr(tt.addr)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
