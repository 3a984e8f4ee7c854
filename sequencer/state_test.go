package sequencer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState(0)
	assert.Equal(t, DefaultTempo, s.Tempo())
	assert.False(t, s.Running())

	seq := s.Sequence(Channel1)
	assert.Equal(t, []float64{0.1, 0.5, 0.8, 0.3}, seq.CV)
	assert.Equal(t, []bool{true, false, true, false}, seq.Gates)
}

func TestSetTempoRejectsOutOfRange(t *testing.T) {
	s := NewState(140)

	for _, bpm := range []int{20, 29, 301, 400, -1} {
		err := s.SetTempo(bpm)
		assert.ErrorIs(t, err, ErrTempoRange, "bpm %d", bpm)
		assert.Equal(t, 140, s.Tempo())
	}

	require.NoError(t, s.SetTempo(MinTempo))
	assert.Equal(t, MinTempo, s.Tempo())
	require.NoError(t, s.SetTempo(MaxTempo))
	assert.Equal(t, MaxTempo, s.Tempo())
}

func TestUpdateSequenceLengthMismatchKeepsPrevious(t *testing.T) {
	s := NewState(DefaultTempo)
	before := s.Sequence(Channel1)

	err := s.UpdateSequence(Channel1, []float64{0.1, 0.2, 0.3}, []bool{true})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, before, s.Sequence(Channel1))

	// cv alone would break the invariant against the stored gates
	err = s.UpdateSequence(Channel1, []float64{0.5}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, before, s.Sequence(Channel1))
}

func TestUpdateSequencePartialFields(t *testing.T) {
	s := NewState(DefaultTempo)

	require.NoError(t, s.UpdateSequence(Channel2, []float64{1, 1, 1, 1}, nil))
	seq := s.Sequence(Channel2)
	assert.Equal(t, []float64{1, 1, 1, 1}, seq.CV)
	assert.Equal(t, []bool{false, true, false, true}, seq.Gates)

	require.NoError(t, s.UpdateSequence(Channel2, nil, []bool{true, true, true, true}))
	assert.Equal(t, []bool{true, true, true, true}, s.Sequence(Channel2).Gates)
}

func TestUpdateSequenceUnknownChannel(t *testing.T) {
	s := NewState(DefaultTempo)
	err := s.UpdateSequence("channel_9", []float64{0}, []bool{false})
	assert.ErrorIs(t, err, ErrUnknownChannel)
	assert.False(t, s.HasChannel("channel_9"))
}

func TestSequenceUnknownChannelIsEmpty(t *testing.T) {
	s := NewState(DefaultTempo)
	seq := s.Sequence("nope")
	assert.Equal(t, 0, seq.Len())
	assert.Empty(t, seq.Gates)
}

func TestSequenceIsIndependentCopy(t *testing.T) {
	s := NewState(DefaultTempo)

	seq := s.Sequence(Channel1)
	seq.CV[0] = 0.99
	seq.Gates[0] = false
	assert.Equal(t, 0.1, s.Sequence(Channel1).CV[0])
	assert.True(t, s.Sequence(Channel1).Gates[0])

	snap := s.Snapshot()
	snap[Channel2].CV[1] = 0
	assert.Equal(t, 0.7, s.Sequence(Channel2).CV[1])

	// inputs are copied as well
	cv := []float64{0.2, 0.4}
	require.NoError(t, s.UpdateSequence(Channel1, cv, []bool{true, false}))
	cv[0] = 0.9
	assert.Equal(t, 0.2, s.Sequence(Channel1).CV[0])
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState(DefaultTempo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				n := 1 + (i+j)%5
				_ = s.UpdateSequence(Channel1, make([]float64, n), make([]bool, n))
				_ = s.SetTempo(MinTempo + j%100)
				seq := s.Sequence(Channel1)
				if len(seq.CV) != len(seq.Gates) {
					t.Errorf("torn read: %d cv, %d gates", len(seq.CV), len(seq.Gates))
				}
			}
		}(i)
	}
	wg.Wait()
}
