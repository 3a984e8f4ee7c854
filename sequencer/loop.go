package sequencer

import (
	"errors"
	"fmt"
	"time"

	"go-cvseq/debug"
)

// DefaultPollInterval is the scheduler granularity: how long a playback loop
// sleeps between clock checks. Step timing is only as precise as this.
const DefaultPollInterval = time.Millisecond

// errQuit aborts a step that was interrupted by Stop
var errQuit = errors.New("playback stopped")

// StepDuration returns the length of one 16th-note step at bpm
func StepDuration(bpm int) time.Duration {
	return time.Minute / time.Duration(bpm*4)
}

// PlaybackLoop plays one channel's sequence into its OutputPort. Channels run
// independently and share only the tempo, so their phases may drift when
// sequence lengths differ.
type PlaybackLoop struct {
	channel ChannelID
	state   *State
	port    OutputPort
	poll    time.Duration
	now     func() time.Time
	quit    <-chan struct{}

	stepIndex int
	lastStep  time.Time
}

// NewPlaybackLoop creates a loop for one channel
func NewPlaybackLoop(ch ChannelID, state *State, port OutputPort, poll time.Duration) *PlaybackLoop {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &PlaybackLoop{
		channel: ch,
		state:   state,
		port:    port,
		poll:    poll,
		now:     time.Now,
	}
}

// StepIndex returns the index of the next step to play. Not safe to call
// while Run is active.
func (l *PlaybackLoop) StepIndex() int {
	return l.stepIndex
}

// Run polls until the running flag clears or quit is closed. The first step
// fires one step duration after Run starts.
func (l *PlaybackLoop) Run(quit <-chan struct{}) {
	l.quit = quit
	l.stepIndex = 0
	l.lastStep = l.now()
	debug.Log("loop", "%s started", l.channel)

	for l.state.Running() {
		select {
		case <-quit:
			debug.Log("loop", "%s quit", l.channel)
			return
		default:
		}
		l.tick(l.now())
		time.Sleep(l.poll)
	}
	debug.Log("loop", "%s stopped", l.channel)
}

// tick plays the next step if it is due. Failures are logged and the step is
// retried on the next tick.
func (l *PlaybackLoop) tick(now time.Time) {
	if now.Sub(l.lastStep) < StepDuration(l.state.Tempo()) {
		return
	}

	seq := l.state.Sequence(l.channel)
	if seq.Len() == 0 {
		return
	}

	err := l.play(seq)
	if errors.Is(err, errQuit) {
		return
	}
	if err != nil {
		debug.LogEvery(100, "loop", "%s step %d failed: %v", l.channel, l.stepIndex, err)
		return
	}

	l.stepIndex = (l.stepIndex + 1) % seq.Len()
	l.lastStep = now
}

// play writes one step to the port, converting port panics into errors
func (l *PlaybackLoop) play(seq Sequence) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("output panic: %v", r)
		}
	}()

	// the sequence may have shrunk since the last step
	if l.stepIndex >= seq.Len() {
		l.stepIndex %= seq.Len()
	}
	if len(seq.Gates) != seq.Len() {
		return fmt.Errorf("%w: %d cv values, %d gate states", ErrLengthMismatch, seq.Len(), len(seq.Gates))
	}

	cv := ClampLevel(seq.CV[l.stepIndex])
	gate := seq.Gates[l.stepIndex]
	debug.Log("loop", "%s step=%d cv=%.3f gate=%t", l.channel, l.stepIndex, cv, gate)

	if err := l.port.SetLevel(cv); err != nil {
		return fmt.Errorf("set level: %w", err)
	}
	if l.stopped() {
		return errQuit
	}
	if err := l.port.SetGate(gate); err != nil {
		return fmt.Errorf("set gate: %w", err)
	}
	return nil
}

// stopped reports whether quit was closed while a step was in flight
func (l *PlaybackLoop) stopped() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}
