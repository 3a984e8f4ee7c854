// Package preset saves and restores sequencer programs (tempo plus both
// channel sequences) as timestamped JSON files.
package preset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-cvseq/config"
	"go-cvseq/protocol"
	"go-cvseq/sequencer"
)

const timeLayout = "2006-01-02_15-04-05"

// Info represents a saved preset file (for listing)
type Info struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Preset is a complete sequencer program
type Preset struct {
	Tempo     int                              `json:"tempo"`
	Sequences map[string]protocol.SequenceData `json:"sequences"`
}

// Sender sends one command to a sequencer
type Sender interface {
	Send(ctx context.Context, cmd sequencer.Command) (protocol.Response, error)
}

// Dir returns the default presets directory
func Dir() (string, error) {
	base, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "presets"), nil
}

// List returns timestamped presets in dir, newest first
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}

	var presets []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
		base := strings.TrimSuffix(name, ".json")
		if len(base) < len(timeLayout) {
			continue
		}
		ts, err := time.Parse(timeLayout, base[:len(timeLayout)])
		if err != nil {
			continue
		}

		label := ""
		if len(base) > len(timeLayout)+1 && base[len(timeLayout)] == '_' {
			label = base[len(timeLayout)+1:]
		}

		presets = append(presets, Info{Filename: name, Name: label, Timestamp: ts})
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Timestamp.After(presets[j].Timestamp)
	})
	return presets, nil
}

// Save writes p to dir as <timestamp>[_name].json and returns the filename
func Save(dir, name string, p Preset, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}

	filename := now.Format(timeLayout)
	if safe := sanitizeFilename(name); safe != "" {
		filename += "_" + safe
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// Load reads a preset. An empty filename loads the most recent one.
func Load(dir, filename string) (Preset, error) {
	if filename == "" {
		presets, err := List(dir)
		if err != nil {
			return Preset{}, err
		}
		if len(presets) == 0 {
			return Preset{}, fmt.Errorf("no presets found in %s", dir)
		}
		filename = presets[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(filename)))
	if err != nil {
		return Preset{}, err
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	return p, nil
}

// Delete removes one preset file
func Delete(dir, filename string) error {
	return os.Remove(filepath.Join(dir, filepath.Base(filename)))
}

// Capture reads the current program from a running sequencer
func Capture(ctx context.Context, s Sender) (Preset, error) {
	resp, err := s.Send(ctx, sequencer.Command{Type: sequencer.CmdStatus})
	if err != nil {
		return Preset{}, err
	}
	st, err := resp.Transport()
	if err != nil {
		return Preset{}, err
	}

	resp, err = s.Send(ctx, sequencer.Command{Type: sequencer.CmdGetSequences})
	if err != nil {
		return Preset{}, err
	}
	p := Preset{Tempo: st.Tempo}
	if err := json.Unmarshal(resp.Data, &p.Sequences); err != nil {
		return Preset{}, fmt.Errorf("decode sequences: %w", err)
	}
	return p, nil
}

// Apply sends the tempo and every channel's sequence. It stops at the first
// rejected command; earlier commands stay applied.
func Apply(ctx context.Context, s Sender, p Preset) error {
	cmds := []sequencer.Command{{Type: sequencer.CmdTempo, Tempo: p.Tempo}}

	channels := make([]string, 0, len(p.Sequences))
	for ch := range p.Sequences {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		seq := p.Sequences[ch]
		gates := make([]bool, len(seq.GateStates))
		for i, g := range seq.GateStates {
			gates[i] = g != 0
		}
		cv := seq.CVValues
		if cv == nil {
			cv = []float64{}
		}
		cmds = append(cmds, sequencer.Command{
			Type:    sequencer.CmdUpdateSequence,
			Channel: sequencer.ChannelID(ch),
			CV:      cv,
			Gates:   gates,
		})
	}

	for _, cmd := range cmds {
		resp, err := s.Send(ctx, cmd)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Type, err)
		}
		if !resp.OK() {
			return fmt.Errorf("%s %s: %s", cmd.Type, cmd.Channel, resp.Message)
		}
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
)

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(strings.TrimSpace(name))
}
