package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go-cvseq/debug"
)

// DefaultStopTimeout bounds how long Stop waits for each loop to exit
const DefaultStopTimeout = time.Second

// Timing configures the playback loops and shutdown grace period
type Timing struct {
	PollInterval time.Duration
	StopTimeout  time.Duration
}

// DefaultTiming returns the default loop timing
func DefaultTiming() Timing {
	return Timing{
		PollInterval: DefaultPollInterval,
		StopTimeout:  DefaultStopTimeout,
	}
}

type loopHandle struct {
	channel ChannelID
	loop    *PlaybackLoop
	done    chan struct{}
}

// Manager starts and stops the playback loops. It is the only writer of the
// running flag.
type Manager struct {
	state  *State
	ports  map[ChannelID]OutputPort
	timing Timing

	mu    sync.Mutex
	loops []*loopHandle
	quit  chan struct{}
}

// NewManager binds one OutputPort per channel. Every channel in Channels
// needs a port.
func NewManager(state *State, ports map[ChannelID]OutputPort, timing Timing) (*Manager, error) {
	for _, ch := range Channels {
		if ports[ch] == nil {
			return nil, fmt.Errorf("no output port for %s", ch)
		}
	}
	if timing.PollInterval <= 0 {
		timing.PollInterval = DefaultPollInterval
	}
	if timing.StopTimeout <= 0 {
		timing.StopTimeout = DefaultStopTimeout
	}
	return &Manager{
		state:  state,
		ports:  ports,
		timing: timing,
	}, nil
}

// Start launches one playback loop per channel. It returns false, and does
// nothing, if playback is already running.
func (m *Manager) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Running() {
		return false
	}

	m.state.setRunning(true)
	m.quit = make(chan struct{})
	m.loops = m.loops[:0]

	for _, ch := range Channels {
		h := &loopHandle{
			channel: ch,
			loop:    NewPlaybackLoop(ch, m.state, m.ports[ch], m.timing.PollInterval),
			done:    make(chan struct{}),
		}
		go func(quit <-chan struct{}) {
			defer close(h.done)
			h.loop.Run(quit)
		}(m.quit)
		m.loops = append(m.loops, h)
	}

	debug.Info("lifecycle", "sequencer started", "tempo", m.state.Tempo())
	return true
}

// Stop halts playback and forces every output to rest. The reset happens
// even when playback was not running or a loop failed to exit in time.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Running() {
		m.state.setRunning(false)
		close(m.quit)

		for _, h := range m.loops {
			select {
			case <-h.done:
			case <-time.After(m.timing.StopTimeout):
				debug.Warn("lifecycle", "playback loop did not exit in time", "channel", h.channel, "timeout", m.timing.StopTimeout)
				go m.restAfter(h)
			}
		}
		m.loops = m.loops[:0]
		debug.Info("lifecycle", "sequencer stopped")
	}

	return m.restAll()
}

// restAfter waits for a loop that missed the stop deadline and rests its
// port again, since its last step may have landed after the forced rest.
// A restarted sequencer owns the port by then and is left alone.
func (m *Manager) restAfter(h *loopHandle) {
	<-h.done

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Running() {
		return
	}
	if err := Rest(m.ports[h.channel]); err != nil {
		debug.Error("lifecycle", "failed to rest output", "channel", h.channel, "err", err)
		return
	}
	debug.Info("lifecycle", "late playback loop exited, output rested", "channel", h.channel)
}

func (m *Manager) restAll() error {
	var errs []error
	for _, ch := range Channels {
		if err := Rest(m.ports[ch]); err != nil {
			debug.Error("lifecycle", "failed to rest output", "channel", ch, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}

// Running reports whether playback is active
func (m *Manager) Running() bool {
	return m.state.Running()
}

// ActiveLoops returns how many loops were launched by the last Start and
// have not been reaped by Stop
func (m *Manager) ActiveLoops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loops)
}
