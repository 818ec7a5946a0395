// Package config loads channel node settings from an optional YAML file, a .env file,
// and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/identity"
)

const (
	TransportMemory = "memory"
	TransportLibp2p = "libp2p"
)

type Config struct {
	Channel   ChannelConfig   `yaml:"channel"`
	Transport TransportConfig `yaml:"transport"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ChannelConfig struct {
	Name            string `yaml:"name" env:"CHANNEL_NAME"`
	Description     string `yaml:"description" env:"CHANNEL_DESCRIPTION"`
	Owner           string `yaml:"owner" env:"CHANNEL_OWNER"`
	HistoryCapacity int    `yaml:"history_capacity" env:"CHANNEL_HISTORY_CAPACITY"`
	Codec           string `yaml:"codec" env:"CHANNEL_CODEC"`
	// RateLimit caps accepted actions per second; zero disables limiting.
	RateLimit       float64 `yaml:"rate_limit" env:"CHANNEL_RATE_LIMIT"`
	RateBurst       int     `yaml:"rate_burst" env:"CHANNEL_RATE_BURST"`
	DeliveryWorkers int     `yaml:"delivery_workers" env:"CHANNEL_DELIVERY_WORKERS"`
	// Mirror runs a read-only follower of a channel hosted by another node.
	Mirror bool `yaml:"mirror" env:"CHANNEL_MIRROR"`
}

type TransportConfig struct {
	Kind            string   `yaml:"kind" env:"TRANSPORT"`
	ListenAddrs     []string `yaml:"listen_addrs" env:"P2P_LISTEN"`
	Bootstrap       []string `yaml:"bootstrap" env:"P2P_BOOTSTRAP"`
	Rendezvous      string   `yaml:"rendezvous" env:"P2P_RENDEZVOUS"`
	EnableMDNS      bool     `yaml:"enable_mdns" env:"P2P_MDNS"`
	IdentityKeyFile string   `yaml:"identity_key_file" env:"P2P_IDENTITY_KEY"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint string        `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure bool          `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	Interval time.Duration `yaml:"interval" env:"OTEL_METRIC_INTERVAL"`
}

func Default() Config {
	return Config{
		Channel: ChannelConfig{
			Name:            "Channel-Coolest-Name",
			Description:     "Channel-Coolest-Description",
			HistoryCapacity: channel.DefaultCapacity,
			Codec:           "json",
			RateBurst:       1,
		},
		Transport: TransportConfig{
			Kind:       TransportMemory,
			Rendezvous: "broadcast-channel",
		},
		HTTP:      HTTPConfig{Addr: ":8090"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4318", Interval: 30 * time.Second},
	}
}

// Load starts from Default, overlays the YAML file at path (if non-empty), then
// .env and the environment. Callers apply their own overrides and then Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Channel.Name) == "" {
		return errors.New("channel name required")
	}
	if _, err := codec.ByName(c.Channel.Codec); err != nil {
		return err
	}
	if c.Channel.RateLimit < 0 {
		return errors.New("rate limit must be >= 0")
	}
	switch c.Transport.Kind {
	case TransportMemory:
		if c.Channel.Mirror {
			return errors.New("mirror mode needs the libp2p transport")
		}
		if strings.TrimSpace(c.Channel.Owner) == "" {
			return errors.New("channel owner required for the memory transport")
		}
	case TransportLibp2p:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}
	if _, _, err := c.Channel.OwnerID(); err != nil {
		return err
	}
	return nil
}

// OwnerID parses the configured owner. ok is false when none is configured, in which
// case the node's own transport identity becomes the owner.
func (c ChannelConfig) OwnerID() (id identity.ID, ok bool, err error) {
	raw := strings.TrimSpace(c.Owner)
	if raw == "" {
		return identity.Zero, false, nil
	}
	id, err = identity.Parse(raw)
	if err != nil {
		return identity.Zero, false, fmt.Errorf("channel owner: %w", err)
	}
	return id, true, nil
}
