package serial

import (
	"fmt"
	"io"
	"sync"

	"go-cvseq/debug"
	"go-cvseq/sequencer"

	"go.bug.st/serial"
)

// Board is a microcontroller DAC board on a serial line. Both channels
// share the line so frames are written under one lock.
type Board struct {
	device string

	mu sync.Mutex
	w  io.WriteCloser
}

// Open opens the named serial device at the given baud rate
func Open(device string, baud int) (*Board, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	debug.Info("serial", "port opened", "device", device, "baud", baud)
	return NewBoard(device, p), nil
}

// NewBoard wraps an already open line
func NewBoard(device string, w io.WriteCloser) *Board {
	return &Board{device: device, w: w}
}

// Ports lists the serial devices present on the system
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Channel returns the OutputPort for a 0-based board channel
func (b *Board) Channel(index byte) *ChannelPort {
	return &ChannelPort{board: b, index: index}
}

func (b *Board) send(f Frame) error {
	data := f.Encode()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.w == nil {
		return fmt.Errorf("serial %s closed", b.device)
	}
	if _, err := b.w.Write(data); err != nil {
		return fmt.Errorf("serial %s write: %w", b.device, err)
	}
	debug.LogEvery(500, "serial", "frame cmd=%#x ch=%d len=%d", f.Cmd, f.Channel, len(data))
	return nil
}

// Close closes the underlying line
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.w == nil {
		return nil
	}
	debug.Info("serial", "closing port", "device", b.device)
	err := b.w.Close()
	b.w = nil
	return err
}

// ChannelPort is one CV/gate pair on the board
type ChannelPort struct {
	board *Board
	index byte
}

var _ sequencer.OutputPort = (*ChannelPort)(nil)

func (p *ChannelPort) SetLevel(v float64) error {
	return p.board.send(LevelFrame(p.index, v))
}

func (p *ChannelPort) SetGate(on bool) error {
	return p.board.send(GateFrame(p.index, on))
}
