package midi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gomidi "gitlab.com/gomidi/midi/v2"
)

type sink struct {
	msgs []gomidi.Message
	err  error
}

func (s *sink) send(msg gomidi.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestLevelToBend(t *testing.T) {
	assert.Equal(t, int16(-8192), LevelToBend(0))
	assert.Equal(t, int16(8191), LevelToBend(1))
	assert.Equal(t, int16(0), LevelToBend(0.5))
	assert.Equal(t, int16(-8192), LevelToBend(-3))
	assert.Equal(t, int16(8191), LevelToBend(2))
}

func TestChannelPortLevel(t *testing.T) {
	s := &sink{}
	port := newOutput("test", 60, s.send).Channel(2)

	require.NoError(t, port.SetLevel(1))
	require.Len(t, s.msgs, 1)

	var ch uint8
	var rel int16
	var abs uint16
	require.True(t, s.msgs[0].GetPitchBend(&ch, &rel, &abs))
	assert.Equal(t, uint8(1), ch)
	assert.Equal(t, int16(8191), rel)
}

func TestChannelPortGateSendsOnChange(t *testing.T) {
	s := &sink{}
	port := newOutput("test", 64, s.send).Channel(1)

	require.NoError(t, port.SetGate(true))
	require.NoError(t, port.SetGate(true))
	require.NoError(t, port.SetGate(false))
	require.NoError(t, port.SetGate(false))
	require.Len(t, s.msgs, 2)

	var ch, key, vel uint8
	require.True(t, s.msgs[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(0), ch)
	assert.Equal(t, uint8(64), key)
	require.True(t, s.msgs[1].GetNoteOff(&ch, &key, &vel))
	assert.Equal(t, uint8(64), key)
}

func TestChannelPortFirstGateOffIsSent(t *testing.T) {
	s := &sink{}
	port := newOutput("test", 60, s.send).Channel(1)

	require.NoError(t, port.SetGate(false))
	assert.Len(t, s.msgs, 1)
}

func TestChannelPortSendErrorRetries(t *testing.T) {
	s := &sink{err: errors.New("unplugged")}
	port := newOutput("test", 60, s.send).Channel(1)

	assert.Error(t, port.SetGate(true))
	s.err = nil
	require.NoError(t, port.SetGate(true))
	assert.Len(t, s.msgs, 1)
}

func TestClosedOutputFails(t *testing.T) {
	s := &sink{}
	out := newOutput("test", 60, s.send)
	require.NoError(t, out.Close())
	assert.Error(t, out.Channel(1).SetLevel(0.5))
}
