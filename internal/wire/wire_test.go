package wire_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMithrellas/mqcast/internal/wire"
)

func TestFrameLayout(t *testing.T) {
	t.Parallel()

	pkt := wire.Frame(make([]byte, 64), "tick", []byte("abc"))
	require.Len(t, pkt, 39)

	want := make([]byte, 39)
	copy(want, "tick")
	binary.LittleEndian.PutUint32(want[32:36], 3)
	copy(want[36:], "abc")
	assert.Equal(t, want, pkt)
}

func TestFrameParseRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{"short topic", "prices", []byte{1, 2, 3, 4}},
		{"empty topic", "", []byte("x")},
		{"exactly 32 bytes", strings.Repeat("t", 32), []byte("payload")},
		{"heartbeat", wire.HeartbeatTopic, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pkt := wire.Frame(nil, tt.topic, tt.payload)
			topic, payload, err := wire.Parse(pkt)
			require.NoError(t, err)
			assert.Equal(t, tt.topic, topic)
			assert.Equal(t, len(tt.payload), len(payload))
			assert.True(t, bytes.Equal(tt.payload, payload))
		})
	}
}

func TestFrameTruncatesLongTopic(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("abcdefgh", 5)
	pkt := wire.Frame(nil, long, []byte("v"))
	require.Len(t, pkt, wire.Size(1))

	topic, payload, err := wire.Parse(pkt)
	require.NoError(t, err)
	assert.Equal(t, long[:wire.TopicSize], topic)
	assert.Equal(t, []byte("v"), payload)
}

func TestFrameClearsStaleTopicBytes(t *testing.T) {
	t.Parallel()

	scratch := make([]byte, 128)
	pkt := wire.Frame(scratch, "a-much-longer-topic-name", []byte("1"))
	pkt = wire.Frame(pkt[:cap(pkt)], "ab", []byte("2"))

	topic, _, err := wire.Parse(pkt)
	require.NoError(t, err)
	assert.Equal(t, "ab", topic)
	assert.Equal(t, make([]byte, wire.TopicSize-2), pkt[2:wire.TopicSize])
}

func TestFrameGrowsScratch(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xAB}, 1000)
	scratch := make([]byte, 16)

	pkt := wire.Frame(scratch, "big", payload)
	require.Len(t, pkt, wire.Size(len(payload)))
	// 16 doubled until >= 1036
	assert.Equal(t, 2048, cap(pkt))

	_, got, err := wire.Parse(pkt)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// the grown buffer is reused without reallocation
	next := wire.Frame(pkt[:cap(pkt)], "small", []byte("z"))
	assert.Equal(t, 2048, cap(next))
	assert.Same(t, &pkt[0], &next[0])
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, _, err := wire.Parse(make([]byte, wire.HeaderSize-1))
	assert.ErrorIs(t, err, wire.ErrShortPacket)

	pkt := wire.Frame(nil, "t", []byte("abc"))
	_, _, err = wire.Parse(pkt[:len(pkt)-1])
	assert.ErrorIs(t, err, wire.ErrLengthMismatch)
}

func TestIsHeartbeat(t *testing.T) {
	t.Parallel()

	assert.True(t, wire.IsHeartbeat(wire.HeartbeatTopic, nil))
	assert.False(t, wire.IsHeartbeat(wire.HeartbeatTopic, []byte("x")))
	assert.False(t, wire.IsHeartbeat("tick", nil))
}
