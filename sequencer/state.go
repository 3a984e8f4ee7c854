package sequencer

import (
	"errors"
	"fmt"
	"sync"
)

// Tempo bounds in BPM
const (
	MinTempo     = 30
	MaxTempo     = 300
	DefaultTempo = 120
)

var (
	ErrTempoRange     = fmt.Errorf("tempo must be between %d and %d BPM", MinTempo, MaxTempo)
	ErrUnknownChannel = errors.New("unknown channel")
	ErrLengthMismatch = errors.New("cv_values and gate_states must have the same length")
)

// ChannelID names one output channel
type ChannelID string

const (
	Channel1 ChannelID = "channel_1"
	Channel2 ChannelID = "channel_2"
)

// Channels lists every channel in playback order
var Channels = []ChannelID{Channel1, Channel2}

// Sequence is one channel's step data. CV and Gates always have the same length.
type Sequence struct {
	CV    []float64
	Gates []bool
}

// Len returns the number of steps
func (s Sequence) Len() int {
	return len(s.CV)
}

// Clone returns a deep copy
func (s Sequence) Clone() Sequence {
	return Sequence{
		CV:    append([]float64{}, s.CV...),
		Gates: append([]bool{}, s.Gates...),
	}
}

// DefaultSequences returns the demo patterns loaded at startup
func DefaultSequences() map[ChannelID]Sequence {
	return map[ChannelID]Sequence{
		Channel1: {
			CV:    []float64{0.1, 0.5, 0.8, 0.3},
			Gates: []bool{true, false, true, false},
		},
		Channel2: {
			CV:    []float64{0.4, 0.7, 0.2, 0.9},
			Gates: []bool{false, true, false, true},
		},
	}
}

// State is the single source of truth shared by the playback loops and the
// command processor. Each field group has its own lock and no method holds
// more than one of them.
type State struct {
	seqMu     sync.RWMutex
	sequences map[ChannelID]Sequence

	tempoMu sync.RWMutex
	tempo   int

	runMu   sync.RWMutex
	running bool
}

// NewState creates state holding the demo sequences at the given tempo.
// An out of range tempo falls back to DefaultTempo.
func NewState(tempo int) *State {
	if tempo < MinTempo || tempo > MaxTempo {
		tempo = DefaultTempo
	}
	return &State{
		sequences: DefaultSequences(),
		tempo:     tempo,
	}
}

// Sequence returns a copy of the channel's sequence. Unknown channels yield
// an empty sequence.
func (s *State) Sequence(ch ChannelID) Sequence {
	s.seqMu.RLock()
	defer s.seqMu.RUnlock()

	seq, ok := s.sequences[ch]
	if !ok {
		return Sequence{}
	}
	return seq.Clone()
}

// HasChannel reports whether ch is a configured channel
func (s *State) HasChannel(ch ChannelID) bool {
	s.seqMu.RLock()
	defer s.seqMu.RUnlock()
	_, ok := s.sequences[ch]
	return ok
}

// Snapshot returns copies of every channel's sequence
func (s *State) Snapshot() map[ChannelID]Sequence {
	s.seqMu.RLock()
	defer s.seqMu.RUnlock()

	out := make(map[ChannelID]Sequence, len(s.sequences))
	for ch, seq := range s.sequences {
		out[ch] = seq.Clone()
	}
	return out
}

// UpdateSequence replaces the provided fields of a channel's sequence. A nil
// slice leaves that field unchanged. cv and gates are swapped in together, so
// a playback loop never observes half an update.
func (s *State) UpdateSequence(ch ChannelID, cv []float64, gates []bool) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	cur, ok := s.sequences[ch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}

	next := cur
	if cv != nil {
		next.CV = append([]float64{}, cv...)
	}
	if gates != nil {
		next.Gates = append([]bool{}, gates...)
	}
	if len(next.CV) != len(next.Gates) {
		return fmt.Errorf("%w: %d cv values, %d gate states", ErrLengthMismatch, len(next.CV), len(next.Gates))
	}

	s.sequences[ch] = next
	return nil
}

// Tempo returns the current BPM
func (s *State) Tempo() int {
	s.tempoMu.RLock()
	defer s.tempoMu.RUnlock()
	return s.tempo
}

// SetTempo sets the BPM. Out of range values are rejected and the previous
// tempo is kept.
func (s *State) SetTempo(bpm int) error {
	if bpm < MinTempo || bpm > MaxTempo {
		return fmt.Errorf("%w: got %d", ErrTempoRange, bpm)
	}
	s.tempoMu.Lock()
	s.tempo = bpm
	s.tempoMu.Unlock()
	return nil
}

// Running reports whether playback is active
func (s *State) Running() bool {
	s.runMu.RLock()
	defer s.runMu.RUnlock()
	return s.running
}

// setRunning is only called by Manager
func (s *State) setRunning(v bool) {
	s.runMu.Lock()
	s.running = v
	s.runMu.Unlock()
}
