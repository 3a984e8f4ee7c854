// Package app assembles the sequencer process: shared state, playback,
// command processing and the network front ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go-cvseq/config"
	"go-cvseq/debug"
	"go-cvseq/journal"
	"go-cvseq/protocol"
	"go-cvseq/sequencer"
	"go-cvseq/telemetry"
	"go-cvseq/web"
)

// ShutdownTimeout bounds each shutdown step
const ShutdownTimeout = 5 * time.Second

// App owns every long-lived component of one sequencer process
type App struct {
	cfg *config.Config

	State     *sequencer.State
	Manager   *sequencer.Manager
	Processor *sequencer.Processor
	Server    *protocol.Server

	bridge  *web.Bridge
	httpLn  net.Listener
	journal *journal.Store
	outputs []io.Closer
	tracing func(context.Context) error

	addr net.Addr
}

// New opens outputs, the journal and tracing as configured
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	ports, closers, err := openOutputs(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("open %s output: %w", cfg.Output.Backend, err)
	}
	return build(ctx, cfg, ports, closers)
}

// NewWithPorts is New with caller-supplied outputs
func NewWithPorts(ctx context.Context, cfg *config.Config, ports map[sequencer.ChannelID]sequencer.OutputPort) (*App, error) {
	return build(ctx, cfg, ports, nil)
}

func build(ctx context.Context, cfg *config.Config, ports map[sequencer.ChannelID]sequencer.OutputPort, closers []io.Closer) (_ *App, err error) {
	a := &App{cfg: cfg, outputs: closers}
	defer func() {
		if err != nil {
			a.closeOutputs()
		}
	}()

	a.State = sequencer.NewState(cfg.Tempo)
	a.Manager, err = sequencer.NewManager(a.State, ports, sequencer.Timing{
		PollInterval: cfg.PollInterval(),
		StopTimeout:  cfg.StopTimeout(),
	})
	if err != nil {
		return nil, err
	}

	a.tracing, err = telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	var opts []sequencer.ProcessorOption
	if cfg.JournalPath != "" {
		a.journal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sequencer.WithRecorder(a.journal))
	}

	a.Processor = sequencer.NewProcessor(a.State, a.Manager, opts...)
	a.Server = protocol.NewServer(a.Processor)
	if cfg.HTTPListen != "" {
		a.bridge = web.NewBridge(a.Server)
	}
	return a, nil
}

// Listen binds the TCP server and, if configured, the HTTP bridge
func (a *App) Listen() error {
	if a.addr != nil {
		return nil
	}
	addr, err := a.Server.Listen(a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Listen, err)
	}
	a.addr = addr

	if a.bridge != nil {
		a.httpLn, err = net.Listen("tcp", a.cfg.HTTPListen)
		if err != nil {
			_ = a.Server.Close()
			return fmt.Errorf("listen http %s: %w", a.cfg.HTTPListen, err)
		}
	}
	return nil
}

// Addr is the bound TCP address, nil before Listen
func (a *App) Addr() net.Addr {
	return a.addr
}

// HTTPAddr is the bound bridge address, nil when the bridge is disabled
func (a *App) HTTPAddr() net.Addr {
	if a.httpLn == nil {
		return nil
	}
	return a.httpLn.Addr()
}

// Run serves until ctx is cancelled, then stops playback (forcing outputs to
// rest), closes the listeners and finally the output backends.
func (a *App) Run(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		a.closeOutputs()
		return err
	}
	debug.Info("app", "sequencer listening", "addr", a.addr.String(), "tempo", a.State.Tempo(), "output", a.cfg.Output.Backend)

	// the processor outlives ctx so the final stop can still go through it
	procCtx, procCancel := context.WithCancel(context.Background())
	var procWG sync.WaitGroup
	procWG.Add(1)
	go func() {
		defer procWG.Done()
		a.Processor.Run(procCtx)
	}()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Server.Serve(procCtx); err != nil {
			errs <- fmt.Errorf("tcp server: %w", err)
		}
	}()
	if a.bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.bridge.Serve(a.httpLn); err != nil {
				errs <- fmt.Errorf("http bridge: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}
	debug.Info("app", "shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if resp, err := a.Processor.Submit(stopCtx, sequencer.Command{Type: sequencer.CmdStop}); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("stop playback: %w", err))
	} else if !resp.OK() {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("stop playback: %s", resp.Message))
	}

	shutdownErr = errors.Join(shutdownErr, a.Server.Close())
	if a.bridge != nil {
		shutdownErr = errors.Join(shutdownErr, a.bridge.Close(stopCtx))
	}
	wg.Wait()

	procCancel()
	procWG.Wait()

	if a.journal != nil {
		shutdownErr = errors.Join(shutdownErr, a.journal.Close())
	}
	shutdownErr = errors.Join(shutdownErr, a.tracing(stopCtx))
	a.closeOutputs()

	return errors.Join(runErr, shutdownErr)
}

func (a *App) closeOutputs() {
	for _, c := range a.outputs {
		if err := c.Close(); err != nil {
			debug.Warn("app", "closing output failed", "err", err)
		}
	}
	a.outputs = nil
}
