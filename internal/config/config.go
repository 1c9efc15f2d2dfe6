package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Client  ClientConfig  `toml:"client"`
	Peer    PeerConfig    `toml:"peer"`
	History HistoryConfig `toml:"history"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	URL    string `toml:"url"`
	Secret string `toml:"secret"`
}

type ClientConfig struct {
	Identity    string   `toml:"identity"`
	IDCodec     string   `toml:"id_codec"` // "numeric" or "codepoint"
	Digest      string   `toml:"digest"`   // "md5" or "blake2b"
	AuthInQuery bool     `toml:"auth_in_query"`
	Groups      []string `toml:"groups"`
}

// PeerConfig holds the connection timings. Defaults match the server's own
// peer settings.
type PeerConfig struct {
	WriteWait      Duration `toml:"write_wait"`
	PongWait       Duration `toml:"pong_wait"`
	PingPeriod     Duration `toml:"ping_period"`
	MaxMessageSize int64    `toml:"max_message_size"`
	SendQueue      int      `toml:"send_queue"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DataDir string `toml:"data_dir"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://localhost:8080/client",
		},
		Client: ClientConfig{
			IDCodec: "numeric",
			Digest:  "md5",
		},
		Peer: PeerConfig{
			WriteWait:      Duration{10 * time.Second},
			PongWait:       Duration{20 * time.Second},
			PingPeriod:     Duration{10 * time.Second},
			MaxMessageSize: 2048,
			SendQueue:      64,
		},
		History: HistoryConfig{
			Enabled: true,
			DataDir: "~/.wschat",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file on top of Defaults. With an empty path it
// tries ~/.wschat/config.toml and falls back to plain defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome("~/.wschat/config.toml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
