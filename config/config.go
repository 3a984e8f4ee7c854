package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"go-cvseq/sequencer"
)

// OutputBackend selects what drives the CV/gate lines
type OutputBackend string

const (
	OutputLog    OutputBackend = "log"
	OutputMIDI   OutputBackend = "midi"
	OutputSerial OutputBackend = "serial"
)

// MIDIOutputConfig maps the sequencer channels onto a MIDI port
type MIDIOutputConfig struct {
	PortName string  `json:"portName,omitempty" env:"MIDI_PORT"`
	Channels []uint8 `json:"channels,omitempty" env:"MIDI_CHANNELS" envSeparator:","` // 1-16, one per sequencer channel
	GateNote uint8   `json:"gateNote,omitempty" env:"MIDI_GATE_NOTE"`
}

// SerialOutputConfig points at a microcontroller driving the DACs
type SerialOutputConfig struct {
	Device string `json:"device,omitempty" env:"SERIAL_DEVICE"`
	Baud   int    `json:"baud,omitempty" env:"SERIAL_BAUD"`
}

// OutputConfig selects and configures the output backend
type OutputConfig struct {
	Backend OutputBackend      `json:"backend" env:"OUTPUT"`
	MIDI    MIDIOutputConfig   `json:"midi,omitempty"`
	Serial  SerialOutputConfig `json:"serial,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Listen     string `json:"listen" env:"LISTEN"`
	HTTPListen string `json:"httpListen,omitempty" env:"HTTP_LISTEN"` // empty disables the HTTP bridge

	Tempo          int `json:"tempo" env:"TEMPO"`
	PollIntervalMS int `json:"pollIntervalMs" env:"POLL_MS"`
	StopTimeoutMS  int `json:"stopTimeoutMs" env:"STOP_TIMEOUT_MS"`

	Output OutputConfig `json:"output"`

	JournalPath  string `json:"journalPath,omitempty" env:"JOURNAL"` // empty disables the journal
	OTelEndpoint string `json:"otelEndpoint,omitempty" env:"OTEL_ENDPOINT"`
	Verbose      bool   `json:"verbose,omitempty" env:"VERBOSE"`
}

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "CVSEQ_"

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Listen:         "0.0.0.0:5000",
		Tempo:          120,
		PollIntervalMS: 1,
		StopTimeoutMS:  1000,
		Output: OutputConfig{
			Backend: OutputLog,
			MIDI: MIDIOutputConfig{
				Channels: []uint8{1, 2},
				GateNote: 60,
			},
			Serial: SerialOutputConfig{
				Baud: 115200,
			},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-cvseq"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the default config file (if any) and applies CVSEQ_*
// environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return LoadFile("")
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, then applies environment overrides.
// A missing file, or an empty path, just yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, err
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail deep inside startup
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Tempo < sequencer.MinTempo || c.Tempo > sequencer.MaxTempo {
		return fmt.Errorf("tempo %d out of range %d-%d", c.Tempo, sequencer.MinTempo, sequencer.MaxTempo)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("pollIntervalMs must be positive, got %d", c.PollIntervalMS)
	}
	if c.StopTimeoutMS <= 0 {
		return fmt.Errorf("stopTimeoutMs must be positive, got %d", c.StopTimeoutMS)
	}
	switch c.Output.Backend {
	case OutputLog:
	case OutputMIDI:
		if len(c.Output.MIDI.Channels) < 2 {
			return fmt.Errorf("midi output needs two channels, got %v", c.Output.MIDI.Channels)
		}
		for _, ch := range c.Output.MIDI.Channels {
			if ch < 1 || ch > 16 {
				return fmt.Errorf("midi channel %d out of range 1-16", ch)
			}
		}
	case OutputSerial:
		if c.Output.Serial.Device == "" {
			return fmt.Errorf("serial output needs a device")
		}
	default:
		return fmt.Errorf("unknown output backend %q", c.Output.Backend)
	}
	return nil
}

// PollInterval returns the playback loop polling granularity
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// StopTimeout returns the per-loop grace period on stop
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}

// DebugLogPath returns where verbose logs go when file logging is enabled
func DebugLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}
