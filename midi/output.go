package midi

import (
	"fmt"
	"math"
	"sync"

	"go-cvseq/debug"
	"go-cvseq/sequencer"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Pitchbend range used to carry a CV level
const (
	bendMin = -8192
	bendMax = 8191
)

// Output drives CV/gate pairs over one MIDI port. CV is sent as 14-bit
// pitchbend, gate as note on/off of a fixed note.
type Output struct {
	name     string
	gateNote uint8

	mu   sync.Mutex // two playback loops share one send func
	send func(msg gomidi.Message) error
	out  drivers.Out
}

// Open finds the named output port and opens it for sending
func Open(portName string, gateNote uint8) (*Output, error) {
	port, err := findOutPort(portName)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	debug.Info("midi", "output opened", "port", port.String())
	o := newOutput(port.String(), gateNote, send)
	o.out = port
	return o, nil
}

func newOutput(name string, gateNote uint8, send func(msg gomidi.Message) error) *Output {
	return &Output{name: name, gateNote: gateNote, send: send}
}

// Channel returns the OutputPort for a 1-based MIDI channel
func (o *Output) Channel(midiChannel uint8) *ChannelPort {
	return &ChannelPort{out: o, channel: midiChannel - 1}
}

func (o *Output) write(msg gomidi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.send == nil {
		return fmt.Errorf("midi output %s closed", o.name)
	}
	return o.send(msg)
}

// Close stops sending and closes the underlying port
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.send = nil
	if o.out != nil {
		return o.out.Close()
	}
	return nil
}

// ChannelPort is one sequencer channel mapped onto a MIDI channel
type ChannelPort struct {
	out     *Output
	channel uint8 // 0-based on the wire

	mu      sync.Mutex
	gateOn  bool
	gateSet bool
}

var _ sequencer.OutputPort = (*ChannelPort)(nil)

// SetLevel sends the clamped level as pitchbend
func (p *ChannelPort) SetLevel(v float64) error {
	return p.out.write(gomidi.Pitchbend(p.channel, LevelToBend(v)))
}

// SetGate sends note on/off only when the gate changes
func (p *ChannelPort) SetGate(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gateSet && p.gateOn == on {
		return nil
	}

	var msg gomidi.Message
	if on {
		msg = gomidi.NoteOn(p.channel, p.out.gateNote, 127)
	} else {
		msg = gomidi.NoteOff(p.channel, p.out.gateNote)
	}
	if err := p.out.write(msg); err != nil {
		return err
	}
	p.gateOn = on
	p.gateSet = true
	return nil
}

// LevelToBend maps 0..1 onto the signed pitchbend range
func LevelToBend(v float64) int16 {
	v = sequencer.ClampLevel(v)
	return int16(math.Round(v*float64(bendMax-bendMin))) + bendMin
}
