package app

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-cvseq/config"
	"go-cvseq/internal/testutil"
	"go-cvseq/journal"
	"go-cvseq/protocol"
	"go-cvseq/sequencer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	return cfg
}

type recorded struct {
	ports map[sequencer.ChannelID]sequencer.OutputPort
	recs  []*testutil.RecordingPort
}

func recordingPorts() recorded {
	r := recorded{ports: map[sequencer.ChannelID]sequencer.OutputPort{}}
	for _, ch := range sequencer.Channels {
		p := testutil.NewRecordingPort()
		r.ports[ch] = p
		r.recs = append(r.recs, p)
	}
	return r
}

func TestRunShutdownRestsOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")
	cfg.HTTPListen = "127.0.0.1:0"
	ports := recordingPorts()

	a, err := NewWithPorts(context.Background(), cfg, ports.ports)
	require.NoError(t, err)
	require.NoError(t, a.Listen())
	require.NotNil(t, a.HTTPAddr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	addr := a.Addr().String()
	resp, err := protocol.SendCommand(context.Background(), addr, sequencer.Command{Type: sequencer.CmdStart})
	require.NoError(t, err)
	require.True(t, resp.OK(), resp.Message)

	require.True(t, testutil.WaitFor(time.Second, func() bool {
		return len(ports.recs[0].Levels()) > 0 && len(ports.recs[1].Levels()) > 0
	}))

	res, err := http.Get("http://" + a.HTTPAddr().String() + "/api?command=status")
	require.NoError(t, err)
	var status protocol.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	res.Body.Close()
	st, err := status.Transport()
	require.NoError(t, err)
	assert.True(t, st.Running)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.False(t, a.State.Running())
	for _, p := range ports.recs {
		level, gate, ok := p.Last()
		require.True(t, ok)
		assert.Equal(t, 0.0, level)
		assert.False(t, gate)
	}

	// the journal saw start, status and the shutdown stop
	store, err := journal.Open(cfg.JournalPath)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, sequencer.CmdStop, entries[0].Type)
	assert.Equal(t, sequencer.CmdStart, entries[2].Type)
}

func TestShutdownWhenIdleStillRests(t *testing.T) {
	ports := recordingPorts()
	a, err := NewWithPorts(context.Background(), testConfig(t), ports.ports)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))

	for _, p := range ports.recs {
		level, gate, ok := p.Last()
		require.True(t, ok)
		assert.Equal(t, 0.0, level)
		assert.False(t, gate)
	}
}

func TestListenFailure(t *testing.T) {
	first, err := NewWithPorts(context.Background(), testConfig(t), recordingPorts().ports)
	require.NoError(t, err)
	require.NoError(t, first.Listen())
	t.Cleanup(func() { _ = first.Server.Close() })

	cfg := testConfig(t)
	cfg.Listen = first.Addr().String()
	second, err := NewWithPorts(context.Background(), cfg, recordingPorts().ports)
	require.NoError(t, err)
	assert.Error(t, second.Run(context.Background()))
}

func TestNewRequiresPorts(t *testing.T) {
	_, err := NewWithPorts(context.Background(), testConfig(t), map[sequencer.ChannelID]sequencer.OutputPort{})
	assert.Error(t, err)
}

func TestOpenLogOutputs(t *testing.T) {
	ports, closers, err := openOutputs(config.OutputConfig{Backend: config.OutputLog})
	require.NoError(t, err)
	assert.Empty(t, closers)
	assert.Len(t, ports, len(sequencer.Channels))

	_, _, err = openOutputs(config.OutputConfig{Backend: "gpio"})
	assert.Error(t, err)
}
