package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"go-cvseq/sequencer"
)

var (
	ErrInvalidFormat = errors.New("Invalid command format")
	ErrInvalidField  = errors.New("invalid field")
)

// Request is the JSON command sent by clients, one per connection.
type Request struct {
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value,omitempty"`
	Channel    string          `json:"channel,omitempty"`
	CVValues   *[]float64      `json:"cv_values,omitempty"`
	GateStates *[]int          `json:"gate_states,omitempty"`
}

// Response is the JSON reply. Data holds the command-specific payload.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the response has success status
func (r Response) OK() bool {
	return r.Status == string(sequencer.StatusSuccess)
}

// SequenceData is the wire form of one channel's sequence
type SequenceData struct {
	CVValues   []float64 `json:"cv_values"`
	GateStates []int     `json:"gate_states"`
}

// StatusData is the payload of a status response
type StatusData struct {
	Running bool `json:"running"`
	Tempo   int  `json:"tempo"`
}

// Decode parses one request. Malformed JSON yields ErrInvalidFormat, bad
// field values ErrInvalidField. Unknown command types decode fine and are
// rejected by the processor.
func Decode(data []byte) (sequencer.Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return sequencer.Command{}, ErrInvalidFormat
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return sequencer.Command{}, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	cmd := sequencer.Command{Type: sequencer.CommandType(req.Type)}

	switch cmd.Type {
	case sequencer.CmdTempo:
		var bpm int
		if len(req.Value) == 0 || json.Unmarshal(req.Value, &bpm) != nil {
			return sequencer.Command{}, fmt.Errorf("%w: tempo requires an integer value", ErrInvalidField)
		}
		cmd.Tempo = bpm

	case sequencer.CmdUpdateSequence:
		if req.Channel == "" {
			return sequencer.Command{}, fmt.Errorf("%w: update_sequence requires a channel", ErrInvalidField)
		}
		cmd.Channel = sequencer.ChannelID(req.Channel)

		// absent or null stays nil ("unchanged"), [] becomes an empty sequence
		if req.CVValues != nil {
			for _, cv := range *req.CVValues {
				if cv < 0 || cv > 1 {
					return sequencer.Command{}, fmt.Errorf("%w: cv_values must be between 0 and 1", ErrInvalidField)
				}
			}
			cmd.CV = append([]float64{}, *req.CVValues...)
		}
		if req.GateStates != nil {
			cmd.Gates = make([]bool, 0, len(*req.GateStates))
			for _, g := range *req.GateStates {
				if g != 0 && g != 1 {
					return sequencer.Command{}, fmt.Errorf("%w: gate_states must be 0 or 1", ErrInvalidField)
				}
				cmd.Gates = append(cmd.Gates, g == 1)
			}
		}
	}

	return cmd, nil
}

// NewRequest builds the wire request for cmd
func NewRequest(cmd sequencer.Command) Request {
	req := Request{
		Type:    string(cmd.Type),
		Channel: string(cmd.Channel),
	}
	if cmd.Type == sequencer.CmdTempo {
		req.Value = json.RawMessage(fmt.Sprintf("%d", cmd.Tempo))
	}
	if cmd.CV != nil {
		cv := append([]float64{}, cmd.CV...)
		req.CVValues = &cv
	}
	if cmd.Gates != nil {
		gates := gatesToWire(cmd.Gates)
		req.GateStates = &gates
	}
	return req
}

// Encode renders a processor response on the wire
func Encode(resp sequencer.Response) ([]byte, error) {
	out := Response{
		Status:  string(resp.Status),
		Message: resp.Message,
	}

	var data any
	switch {
	case resp.Sequences != nil:
		seqs := make(map[string]SequenceData, len(resp.Sequences))
		for ch, seq := range resp.Sequences {
			seqs[string(ch)] = SequenceData{
				CVValues:   append([]float64{}, seq.CV...),
				GateStates: gatesToWire(seq.Gates),
			}
		}
		data = seqs
	case resp.Transport != nil:
		data = StatusData{Running: resp.Transport.Running, Tempo: resp.Transport.Tempo}
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
		out.Data = raw
	}
	return json.Marshal(out)
}

// EncodeError renders an error reply
func EncodeError(err error) []byte {
	b, _ := json.Marshal(Response{
		Status:  string(sequencer.StatusError),
		Message: err.Error(),
	})
	return b
}

// Sequences decodes a get_sequences payload
func (r Response) Sequences() (map[sequencer.ChannelID]sequencer.Sequence, error) {
	var raw map[string]SequenceData
	if err := json.Unmarshal(r.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode sequences: %w", err)
	}
	out := make(map[sequencer.ChannelID]sequencer.Sequence, len(raw))
	for ch, d := range raw {
		seq := sequencer.Sequence{CV: d.CVValues, Gates: make([]bool, len(d.GateStates))}
		for i, g := range d.GateStates {
			seq.Gates[i] = g != 0
		}
		out[sequencer.ChannelID(ch)] = seq
	}
	return out, nil
}

// Transport decodes a status payload
func (r Response) Transport() (StatusData, error) {
	var st StatusData
	if err := json.Unmarshal(r.Data, &st); err != nil {
		return StatusData{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func gatesToWire(gates []bool) []int {
	out := make([]int, len(gates))
	for i, g := range gates {
		if g {
			out[i] = 1
		}
	}
	return out
}
