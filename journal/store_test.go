package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-cvseq/sequencer"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s, path
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestRecordAndList(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, s.Record(ctx,
		sequencer.Command{Type: sequencer.CmdTempo, Tempo: 140},
		sequencer.Response{ID: "a", Status: sequencer.StatusSuccess, Message: "Tempo set to 140 BPM"}))
	require.NoError(t, s.Record(ctx,
		sequencer.Command{Type: sequencer.CmdUpdateSequence, Channel: sequencer.Channel2, CV: []float64{0.25}, Gates: []bool{true}},
		sequencer.Response{ID: "b", Status: sequencer.StatusError, Message: "boom"}))

	entries, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, sequencer.CmdUpdateSequence, entries[0].Type)
	assert.Equal(t, sequencer.Channel2, entries[0].Channel)
	assert.Equal(t, Args{CV: []float64{0.25}, Gates: []bool{true}}, entries[0].Args)
	assert.Equal(t, sequencer.StatusError, entries[0].Status)
	assert.Equal(t, base.Add(2*time.Second), entries[0].CreatedAt)

	assert.Equal(t, "a", entries[1].ID)
	assert.Equal(t, 140, entries[1].Args.Tempo)

	entries, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = s.List(ctx, 0)
	assert.Error(t, err)
}

func TestRecordAssignsID(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sequencer.Command{Type: sequencer.CmdStart}, sequencer.Response{Status: sequencer.StatusSuccess}))
	entries, err := s.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), sequencer.Command{Type: sequencer.CmdStop}, sequencer.Response{ID: "x", Status: sequencer.StatusSuccess}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].ID)
}

func TestRecordThroughProcessor(t *testing.T) {
	s, _ := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := sequencer.NewState(sequencer.DefaultTempo)
	m, err := sequencer.NewManager(state, map[sequencer.ChannelID]sequencer.OutputPort{
		sequencer.Channel1: sequencer.NewLogPort(string(sequencer.Channel1)),
		sequencer.Channel2: sequencer.NewLogPort(string(sequencer.Channel2)),
	}, sequencer.DefaultTiming())
	require.NoError(t, err)
	p := sequencer.NewProcessor(state, m, sequencer.WithRecorder(s))
	go p.Run(ctx)

	resp, err := p.Submit(ctx, sequencer.Command{Type: sequencer.CmdTempo, Tempo: 99})
	require.NoError(t, err)

	entries, err := s.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, resp.ID, entries[0].ID)
	assert.Equal(t, 99, entries[0].Args.Tempo)
}
