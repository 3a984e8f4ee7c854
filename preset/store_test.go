package preset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-cvseq/protocol"
	"go-cvseq/sequencer"
)

func testPreset() Preset {
	return Preset{
		Tempo: 133,
		Sequences: map[string]protocol.SequenceData{
			"channel_1": {CVValues: []float64{0, 1}, GateStates: []int{1, 0}},
			"channel_2": {CVValues: []float64{0.5}, GateStates: []int{1}},
		},
	}
}

func TestSaveListLoad(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)

	first, err := Save(dir, "", testPreset(), t0)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15_14-30-00.json", first)

	second, err := Save(dir, "acid line: v2", Preset{Tempo: 90}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15_14-31-00_acid-line--v2.json", second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{}"), 0644))

	infos, err := List(dir)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, second, infos[0].Filename)
	assert.Equal(t, "acid-line--v2", infos[0].Name)
	assert.Equal(t, "", infos[1].Name)

	latest, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 90, latest.Tempo)

	p, err := Load(dir, first)
	require.NoError(t, err)
	assert.Equal(t, testPreset(), p)

	require.NoError(t, Delete(dir, second))
	infos, err = List(dir)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestListMissingDir(t *testing.T) {
	infos, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = Load(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}

func startRemote(t *testing.T) (protocol.Remote, *sequencer.State) {
	t.Helper()
	state := sequencer.NewState(sequencer.DefaultTempo)
	m, err := sequencer.NewManager(state, map[sequencer.ChannelID]sequencer.OutputPort{
		sequencer.Channel1: sequencer.NewLogPort("a"),
		sequencer.Channel2: sequencer.NewLogPort("b"),
	}, sequencer.DefaultTiming())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	p := sequencer.NewProcessor(state, m)
	go p.Run(ctx)
	srv := protocol.NewServer(p)
	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ctx) }()
	t.Cleanup(func() {
		_ = srv.Close()
		cancel()
	})
	return protocol.Remote(addr.String()), state
}

func TestApplyThenCapture(t *testing.T) {
	remote, state := startRemote(t)
	ctx := context.Background()

	require.NoError(t, Apply(ctx, remote, testPreset()))
	assert.Equal(t, 133, state.Tempo())
	assert.Equal(t, sequencer.Sequence{CV: []float64{0.5}, Gates: []bool{true}}, state.Sequence(sequencer.Channel2))

	got, err := Capture(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, testPreset(), got)
}

func TestApplyStopsOnRejection(t *testing.T) {
	remote, state := startRemote(t)

	bad := testPreset()
	bad.Tempo = 10
	err := Apply(context.Background(), remote, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tempo")
	assert.Equal(t, sequencer.DefaultSequences()[sequencer.Channel1], state.Sequence(sequencer.Channel1))
}
