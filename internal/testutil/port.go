package testutil

import (
	"errors"
	"sync"
	"time"
)

// Write is one call observed by a RecordingPort
type Write struct {
	At    time.Time
	Level *float64
	Gate  *bool
}

// RecordingPort is an OutputPort that remembers every write.
type RecordingPort struct {
	mu     sync.Mutex
	writes []Write
	failOn int // fail SetLevel while > 0
	panics bool
}

// NewRecordingPort creates an empty recording port
func NewRecordingPort() *RecordingPort {
	return &RecordingPort{}
}

var ErrInjected = errors.New("injected output failure")

// FailNext makes the next n SetLevel calls return ErrInjected
func (p *RecordingPort) FailNext(n int) {
	p.mu.Lock()
	p.failOn = n
	p.mu.Unlock()
}

// PanicOnWrite makes SetLevel panic until cleared
func (p *RecordingPort) PanicOnWrite(v bool) {
	p.mu.Lock()
	p.panics = v
	p.mu.Unlock()
}

func (p *RecordingPort) SetLevel(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("output exploded")
	}
	if p.failOn > 0 {
		p.failOn--
		return ErrInjected
	}
	p.writes = append(p.writes, Write{At: time.Now(), Level: &level})
	return nil
}

func (p *RecordingPort) SetGate(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, Write{At: time.Now(), Gate: &on})
	return nil
}

// Writes returns a copy of all observed writes
func (p *RecordingPort) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write{}, p.writes...)
}

// Levels returns every level written, in order
func (p *RecordingPort) Levels() []float64 {
	var out []float64
	for _, w := range p.Writes() {
		if w.Level != nil {
			out = append(out, *w.Level)
		}
	}
	return out
}

// Gates returns every gate state written, in order
func (p *RecordingPort) Gates() []bool {
	var out []bool
	for _, w := range p.Writes() {
		if w.Gate != nil {
			out = append(out, *w.Gate)
		}
	}
	return out
}

// Last returns the most recent level and gate, and whether each was written
func (p *RecordingPort) Last() (level float64, gate bool, ok bool) {
	ls, gs := p.Levels(), p.Gates()
	if len(ls) == 0 || len(gs) == 0 {
		return 0, false, false
	}
	return ls[len(ls)-1], gs[len(gs)-1], true
}

// Reset forgets all writes
func (p *RecordingPort) Reset() {
	p.mu.Lock()
	p.writes = nil
	p.mu.Unlock()
}

// WaitFor polls cond until it holds or timeout elapses
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
