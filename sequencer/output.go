package sequencer

import (
	"errors"
	"sync"

	"go-cvseq/debug"
)

// OutputPort drives one channel's CV and gate lines. The concrete device
// binding (MIDI, serial, GPIO...) lives outside this package.
type OutputPort interface {
	SetLevel(level float64) error // 0.0 - 1.0
	SetGate(on bool) error
}

// Rest puts a port in its safe state: level 0, gate off. Both writes are
// attempted even if the first one fails.
func Rest(port OutputPort) error {
	if port == nil {
		return nil
	}
	return errors.Join(port.SetLevel(0), port.SetGate(false))
}

// ClampLevel limits v to [0, 1]
func ClampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LogPort is an OutputPort with no hardware behind it. It remembers the last
// written values and logs every change.
type LogPort struct {
	Name string

	mu    sync.Mutex
	level float64
	gate  bool
}

// NewLogPort creates a log-only port
func NewLogPort(name string) *LogPort {
	return &LogPort{Name: name}
}

func (p *LogPort) SetLevel(level float64) error {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
	debug.Log("output", "%s level=%.3f", p.Name, level)
	return nil
}

func (p *LogPort) SetGate(on bool) error {
	p.mu.Lock()
	p.gate = on
	p.mu.Unlock()
	debug.Log("output", "%s gate=%t", p.Name, on)
	return nil
}

// Values returns the last written level and gate
func (p *LogPort) Values() (level float64, gate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, p.gate
}
