package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// Packet layout shared with existing subscribers:
//
//	[0:32)  topic, NUL padded, truncated when longer
//	[32:36) payload length, uint32 little-endian
//	[36:)   payload
const (
	TopicSize  = 32
	HeaderSize = TopicSize + 4
)

// MaxPayload is the largest payload the length field can describe.
const MaxPayload = math.MaxUint32

// HeartbeatTopic marks the empty liveness packet sent when a publisher is idle.
const HeartbeatTopic = "HEARTBEAT"

var (
	ErrShortPacket    = errors.New("wire: packet shorter than header")
	ErrLengthMismatch = errors.New("wire: payload length does not match header")
)

// Size returns the framed length of a payload of n bytes.
func Size(n int) int { return HeaderSize + n }

// Frame writes topic and payload into scratch and returns the packet.
// When scratch is too small its length is doubled until the packet fits.
// The returned slice keeps the grown buffer as its capacity, so callers reuse
// it with pkt[:cap(pkt)]. Payloads longer than MaxPayload cannot be framed;
// callers reject them before they get here.
func Frame(scratch []byte, topic string, payload []byte) []byte {
	n := Size(len(payload))
	if len(scratch) < n {
		size := len(scratch)
		if size == 0 {
			size = n
		}
		for size < n {
			size *= 2
		}
		scratch = make([]byte, size)
	}

	pkt := scratch[:n]
	// copy truncates; the rest of the field must be zeroed since scratch is reused
	c := copy(pkt[:TopicSize], topic)
	clear(pkt[c:TopicSize])
	binary.LittleEndian.PutUint32(pkt[TopicSize:HeaderSize], uint32(len(payload)))
	copy(pkt[HeaderSize:], payload)
	return pkt
}

// Parse decodes a packet produced by Frame. The returned payload aliases p.
func Parse(p []byte) (topic string, payload []byte, err error) {
	if len(p) < HeaderSize {
		return "", nil, ErrShortPacket
	}
	length := binary.LittleEndian.Uint32(p[TopicSize:HeaderSize])
	if uint64(len(p)-HeaderSize) != uint64(length) {
		return "", nil, ErrLengthMismatch
	}
	field := p[:TopicSize]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field), p[HeaderSize:], nil
}

// IsHeartbeat reports whether a decoded packet is a liveness signal rather
// than application data.
func IsHeartbeat(topic string, payload []byte) bool {
	return topic == HeartbeatTopic && len(payload) == 0
}
