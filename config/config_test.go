package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, time.Millisecond, cfg.PollInterval())
	assert.Equal(t, time.Second, cfg.StopTimeout())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:6000"
	cfg.Output.Backend = OutputSerial
	cfg.Output.Serial.Device = "/dev/ttyACM0"
	require.NoError(t, cfg.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen":"127.0.0.1:7000","tempo":90}`), 0644))

	t.Setenv("CVSEQ_TEMPO", "140")
	t.Setenv("CVSEQ_POLL_MS", "2")
	t.Setenv("CVSEQ_OUTPUT", "midi")
	t.Setenv("CVSEQ_MIDI_CHANNELS", "3,4")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Listen)
	assert.Equal(t, 140, cfg.Tempo)
	assert.Equal(t, 2*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, OutputMIDI, cfg.Output.Backend)
	assert.Equal(t, []uint8{3, 4}, cfg.Output.MIDI.Channels)
}

func TestLoadFileRejectsBadEnv(t *testing.T) {
	t.Setenv("CVSEQ_TEMPO", "fast")
	_, err := LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoadFileRejectsTempoOutOfRange(t *testing.T) {
	t.Setenv("CVSEQ_TEMPO", "500")
	_, err := LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tempo 500")
}

func TestLoadFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen":`), 0644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty listen":      func(c *Config) { c.Listen = "" },
		"slow tempo":        func(c *Config) { c.Tempo = 29 },
		"fast tempo":        func(c *Config) { c.Tempo = 301 },
		"zero poll":         func(c *Config) { c.PollIntervalMS = 0 },
		"zero stop timeout": func(c *Config) { c.StopTimeoutMS = -1 },
		"unknown backend":   func(c *Config) { c.Output.Backend = "gpio" },
		"serial no device":  func(c *Config) { c.Output.Backend = OutputSerial },
		"midi bad channel": func(c *Config) {
			c.Output.Backend = OutputMIDI
			c.Output.MIDI.Channels = []uint8{1, 17}
		},
		"midi one channel": func(c *Config) {
			c.Output.Backend = OutputMIDI
			c.Output.MIDI.Channels = []uint8{1}
		},
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, DefaultConfig().Validate())
}
