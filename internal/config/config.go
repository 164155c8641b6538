// Package config loads tool configuration from YAML. Flags override file
// values, and the file overrides defaults; the merge happens here so every
// subcommand sees one resolved Config.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/ghostlink/internal/keystream"
)

// Operations mirrors the scrambling operation toggles in YAML.
type Operations struct {
	Permutation bool `yaml:"permutation"`
	Inversion   bool `yaml:"inversion"`
	Shift       bool `yaml:"shift"`
}

// Noise configures the encoder's additive noise hook.
type Noise struct {
	Enabled   bool    `yaml:"enabled"`
	Amplitude float64 `yaml:"amplitude"`
	Seed      int64   `yaml:"seed"`
}

// Relay configures the QUIC relay server.
type Relay struct {
	Addr       string `yaml:"addr"`
	QueueDepth int    `yaml:"queue_depth"`
}

// Config is the resolved tool configuration.
type Config struct {
	Standard     string  `yaml:"standard"`
	SampleRate   int     `yaml:"sample_rate"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	BandwidthMHz float64 `yaml:"bandwidth_mhz"`

	SegmentsPerLine int        `yaml:"segments_per_line"`
	Operations      Operations `yaml:"operations"`

	// KeyHex is the 32-byte scrambling key in hex. Passphrase is hashed into
	// a key when KeyHex is absent; KeyHex wins when both are set.
	KeyHex     string `yaml:"key"`
	Passphrase string `yaml:"passphrase"`

	Workers int   `yaml:"workers"`
	Noise   Noise `yaml:"noise"`
	Relay   Relay `yaml:"relay"`
}

// Default returns the configuration used when no file or flags are given.
func Default() Config {
	return Config{
		Standard:        "NTSC",
		SampleRate:      10_000_000,
		Width:           640,
		Height:          480,
		BandwidthMHz:    4.2,
		SegmentsPerLine: 16,
		Operations:      Operations{Permutation: true, Inversion: true, Shift: true},
		Workers:         1,
		Noise:           Noise{Amplitude: 0.01},
		Relay:           Relay{Addr: "localhost:4433", QueueDepth: 32},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations no stage could run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample rate %d must be positive", c.SampleRate)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: resolution %dx%d must be positive", c.Width, c.Height)
	}
	if c.BandwidthMHz <= 0 {
		return fmt.Errorf("config: bandwidth %.2f MHz must be positive", c.BandwidthMHz)
	}
	if c.SegmentsPerLine <= 0 {
		return fmt.Errorf("config: segments per line %d must be positive", c.SegmentsPerLine)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers %d must not be negative", c.Workers)
	}
	if c.KeyHex != "" {
		key, err := hex.DecodeString(c.KeyHex)
		if err != nil {
			return fmt.Errorf("config: key is not valid hex: %w", err)
		}
		if len(key) != keystream.KeySize {
			return fmt.Errorf("config: key is %d bytes, want %d", len(key), keystream.KeySize)
		}
	}
	return nil
}

// Key resolves the scrambling key from KeyHex or Passphrase.
func (c Config) Key() ([]byte, error) {
	if c.KeyHex != "" {
		key, err := hex.DecodeString(c.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("config: key is not valid hex: %w", err)
		}
		if len(key) != keystream.KeySize {
			return nil, fmt.Errorf("config: key is %d bytes, want %d", len(key), keystream.KeySize)
		}
		return key, nil
	}
	if c.Passphrase != "" {
		return keystream.DeriveKey(c.Passphrase), nil
	}
	return nil, fmt.Errorf("config: no key or passphrase configured")
}
