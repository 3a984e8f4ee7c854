package serial

import (
	"encoding/binary"
	"math"

	"go-cvseq/sequencer"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdLevel = 0x20
	CmdGate  = 0x21

	// LevelMax is the full-scale DAC code for a level of 1.0
	LevelMax = 0xFFFF
)

// Frame is a single output update for one channel of the DAC board
type Frame struct {
	Cmd     byte
	Channel byte
	Payload []byte
}

// LevelFrame carries a 16-bit big-endian DAC code
func LevelFrame(channel byte, v float64) Frame {
	code := uint16(math.Round(sequencer.ClampLevel(v) * LevelMax))
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, code)
	return Frame{Cmd: CmdLevel, Channel: channel, Payload: payload}
}

// GateFrame carries 1 for high, 0 for low
func GateFrame(channel byte, on bool) Frame {
	var b byte
	if on {
		b = 1
	}
	return Frame{Cmd: CmdGate, Channel: channel, Payload: []byte{b}}
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][channel][payload...][CKS]
//
// LEN counts CMD, channel and payload. CKS is the XOR of LEN through the
// last payload byte.
func (f Frame) Encode() []byte {
	length := byte(len(f.Payload) + 2)
	cks := length ^ f.Cmd ^ f.Channel
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+6)
	out = append(out, SOF0, SOF1, length, f.Cmd, f.Channel)
	out = append(out, f.Payload...)
	out = append(out, cks)
	return out
}
