package app

import (
	"fmt"
	"io"

	"go-cvseq/config"
	"go-cvseq/midi"
	"go-cvseq/sequencer"
	"go-cvseq/serial"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openOutputs builds one OutputPort per channel for the configured backend.
// The returned closers release the hardware and must run after playback
// has stopped.
func openOutputs(cfg config.OutputConfig) (map[sequencer.ChannelID]sequencer.OutputPort, []io.Closer, error) {
	ports := make(map[sequencer.ChannelID]sequencer.OutputPort, len(sequencer.Channels))

	switch cfg.Backend {
	case config.OutputLog, "":
		for _, ch := range sequencer.Channels {
			ports[ch] = sequencer.NewLogPort(string(ch))
		}
		return ports, nil, nil

	case config.OutputMIDI:
		out, err := midi.Open(cfg.MIDI.PortName, cfg.MIDI.GateNote)
		if err != nil {
			midi.Close()
			return nil, nil, err
		}
		for i, ch := range sequencer.Channels {
			ports[ch] = out.Channel(cfg.MIDI.Channels[i])
		}
		return ports, []io.Closer{out, closerFunc(func() error { midi.Close(); return nil })}, nil

	case config.OutputSerial:
		board, err := serial.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return nil, nil, err
		}
		for i, ch := range sequencer.Channels {
			ports[ch] = board.Channel(byte(i))
		}
		return ports, []io.Closer{board}, nil

	default:
		return nil, nil, fmt.Errorf("unknown output backend %q", cfg.Backend)
	}
}
