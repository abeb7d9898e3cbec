package domain

import (
	"encoding/binary"
	"hash/crc32"
)

// Frame format constants.
//
// A framed message is laid out as:
//
//	[length:4][crc32:4][kind:1][ctx:1][payload...]
//
// where length covers everything after the length field itself and the
// CRC covers kind, ctx and payload. The same framing is used for the
// persistent backend's values and for messages embedded in reset-stream
// chunks, so a message's Length() is stable across both.
const (
	// frameHeaderSize is the size of the length prefix.
	frameHeaderSize = 4

	// frameOverhead is the full framing overhead: length (4) + crc (4) +
	// kind (1) + ctx (1).
	frameOverhead = 10

	// minFrameBodySize is the smallest valid frame body: crc + kind + ctx.
	minFrameBodySize = 6

	// MaxFramePayload bounds a single message payload. Anything larger is
	// treated as corruption rather than buffered.
	MaxFramePayload = 16 << 20 // 16MB
)

// EncodeFrame serializes a message into its framed wire form.
func EncodeFrame(m Message) []byte {
	body := make([]byte, 0, minFrameBodySize+len(m.payload))

	var crcBuf [4]byte
	crc := frameChecksum(m.kind, m.contextID, m.payload)
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	body = append(body, crcBuf[:]...)
	body = append(body, byte(m.kind), m.contextID)
	body = append(body, m.payload...)

	out := make([]byte, 0, frameHeaderSize+len(body))
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	out = append(out, header[:]...)
	out = append(out, body...)
	return out
}

// DecodeFrameBody decodes a frame body (everything after the length
// prefix) back into a message. The payload is copied out of the input.
func DecodeFrameBody(body []byte) (Message, error) {
	if len(body) < minFrameBodySize {
		return Message{}, ErrCorruptFrame
	}

	wantCRC := binary.BigEndian.Uint32(body[:4])
	kind := Kind(body[4])
	contextID := body[5]
	payload := body[6:]

	if kind > KindResetStream {
		return Message{}, ErrCorruptFrame.WithDetails("unknown message kind")
	}
	if frameChecksum(kind, contextID, payload) != wantCRC {
		return Message{}, ErrFrameChecksum
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return Message{kind: kind, contextID: contextID, payload: out}, nil
}

// FrameLength reads the length prefix of a frame. It returns the body
// length and whether enough bytes were available to read the prefix.
func FrameLength(data []byte) (int, bool) {
	if len(data) < frameHeaderSize {
		return 0, false
	}
	return int(binary.BigEndian.Uint32(data[:frameHeaderSize])), true
}

// FrameHeaderSize returns the size of the frame length prefix.
func FrameHeaderSize() int { return frameHeaderSize }

// MinFrameBodySize returns the smallest valid frame body length.
func MinFrameBodySize() int { return minFrameBodySize }

func frameChecksum(kind Kind, contextID uint8, payload []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write([]byte{byte(kind), contextID})
	crc.Write(payload)
	return crc.Sum32()
}
