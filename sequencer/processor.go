package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go-cvseq/debug"
)

// CommandType identifies a command
type CommandType string

const (
	CmdStart          CommandType = "start"
	CmdStop           CommandType = "stop"
	CmdTempo          CommandType = "tempo"
	CmdUpdateSequence CommandType = "update_sequence"
	CmdGetSequences   CommandType = "get_sequences"
	CmdStatus         CommandType = "status"
)

// ErrUnknownCommand is reported for unrecognised command types
var ErrUnknownCommand = errors.New("unknown command")

// ErrProcessorStopped is returned by Submit once Run has exited
var ErrProcessorStopped = errors.New("command processor stopped")

// Command is a request to change or read the sequencer. Only the fields
// relevant to Type are used: Tempo for CmdTempo, Channel/CV/Gates for
// CmdUpdateSequence (nil CV or Gates means "leave unchanged").
type Command struct {
	Type    CommandType
	Tempo   int
	Channel ChannelID
	CV      []float64
	Gates   []bool
}

// Status is the outcome of a command
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Transport is the playback status reported by CmdStatus
type Transport struct {
	Running bool
	Tempo   int
}

// Response is the result of handling one command
type Response struct {
	ID        string
	Status    Status
	Message   string
	Err       error
	Sequences map[ChannelID]Sequence // CmdGetSequences
	Transport *Transport             // CmdStatus
}

// OK reports whether the command succeeded
func (r Response) OK() bool {
	return r.Status == StatusSuccess
}

func success(msg string) Response {
	return Response{Status: StatusSuccess, Message: msg}
}

func failure(err error) Response {
	return Response{Status: StatusError, Message: err.Error(), Err: err}
}

// Recorder receives every handled command, e.g. for an audit journal
type Recorder interface {
	Record(ctx context.Context, cmd Command, resp Response) error
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan Response
}

// Processor applies commands to the shared state one at a time. All callers
// go through Submit, which queues onto a single channel drained by Run, so
// no two commands ever mutate state concurrently.
type Processor struct {
	state    *State
	manager  *Manager
	recorder Recorder
	tracer   trace.Tracer

	requests chan request
	done     chan struct{}
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithRecorder records every handled command
func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) { p.recorder = r }
}

// NewProcessor creates a processor. Call Run before Submit can complete.
func NewProcessor(state *State, manager *Manager, opts ...ProcessorOption) *Processor {
	p := &Processor{
		state:    state,
		manager:  manager,
		tracer:   otel.Tracer("go-cvseq/sequencer"),
		requests: make(chan request, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes queued commands until ctx is cancelled
func (p *Processor) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.requests:
			req.reply <- p.Handle(req.ctx, req.cmd)
		}
	}
}

// Submit queues cmd and waits for its response
func (p *Processor) Submit(ctx context.Context, cmd Command) (Response, error) {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan Response, 1)}

	select {
	case p.requests <- req:
	case <-p.done:
		return Response{}, ErrProcessorStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-p.done:
		return Response{}, ErrProcessorStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Handle dispatches one command directly. It is not serialised; use Submit
// unless the caller is the consumer itself.
func (p *Processor) Handle(ctx context.Context, cmd Command) Response {
	id := uuid.NewString()
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "command."+string(cmd.Type),
		trace.WithAttributes(
			attribute.String("command.id", id),
			attribute.String("command.type", string(cmd.Type)),
		))
	defer span.End()

	resp := p.dispatch(cmd)
	resp.ID = id

	if resp.Err != nil {
		span.SetStatus(codes.Error, resp.Message)
	}
	debug.Info("command", "handled", "id", id, "type", cmd.Type, "status", resp.Status, "message", resp.Message, "took", time.Since(start))

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, cmd, resp); err != nil {
			debug.Warn("command", "journal write failed", "id", id, "err", err)
		}
	}
	return resp
}

func (p *Processor) dispatch(cmd Command) Response {
	switch cmd.Type {
	case CmdStart:
		if !p.manager.Start() {
			return success("Sequencer already running")
		}
		return success("Sequencer started")

	case CmdStop:
		wasRunning := p.manager.Running()
		if err := p.manager.Stop(); err != nil {
			return failure(fmt.Errorf("reset outputs: %w", err))
		}
		if !wasRunning {
			return success("Sequencer not running, outputs reset")
		}
		return success("Sequencer stopped")

	case CmdTempo:
		if err := p.state.SetTempo(cmd.Tempo); err != nil {
			return failure(err)
		}
		return success(fmt.Sprintf("Tempo set to %d BPM", cmd.Tempo))

	case CmdUpdateSequence:
		if err := p.state.UpdateSequence(cmd.Channel, cmd.CV, cmd.Gates); err != nil {
			return failure(err)
		}
		return success(fmt.Sprintf("Sequence update for %s: success", cmd.Channel))

	case CmdGetSequences:
		resp := success("Sequences retrieved")
		resp.Sequences = make(map[ChannelID]Sequence, len(Channels))
		for _, ch := range Channels {
			resp.Sequences[ch] = p.state.Sequence(ch)
		}
		return resp

	case CmdStatus:
		resp := success("Status retrieved")
		resp.Transport = &Transport{
			Running: p.state.Running(),
			Tempo:   p.state.Tempo(),
		}
		return resp

	default:
		return failure(ErrUnknownCommand)
	}
}
