package history

import (
	"github.com/oxleyk/drawhub/internal/core/domain"
)

// StreamConsumer reassembles messages from a streamed reset payload.
// Chunks arrive at whatever granularity the client's transport produced
// them; frame boundaries do not line up with chunk boundaries, so the
// consumer buffers the remainder between calls.
type StreamConsumer struct {
	buf []byte
}

// NewStreamConsumer returns an empty consumer.
func NewStreamConsumer() *StreamConsumer {
	return &StreamConsumer{}
}

// Feed appends a chunk to the buffer and decodes every complete frame in
// it. It returns the fully reconstructed messages; a partial frame at
// the end stays buffered for the next call. A decode failure (bad
// checksum, unknown kind, oversized frame) poisons the whole stream and
// returns a non-nil error.
func (c *StreamConsumer) Feed(chunk []byte) ([]domain.Message, error) {
	c.buf = append(c.buf, chunk...)

	var out []domain.Message
	for {
		bodyLen, ok := domain.FrameLength(c.buf)
		if !ok {
			break
		}
		if bodyLen < domain.MinFrameBodySize() || bodyLen > domain.MinFrameBodySize()+domain.MaxFramePayload {
			return out, domain.ErrCorruptFrame.WithDetails("implausible frame length")
		}
		frameEnd := domain.FrameHeaderSize() + bodyLen
		if len(c.buf) < frameEnd {
			break
		}
		msg, err := domain.DecodeFrameBody(c.buf[domain.FrameHeaderSize():frameEnd])
		if err != nil {
			return out, err
		}
		out = append(out, msg)
		c.buf = c.buf[frameEnd:]
	}

	// Compact once the consumed prefix dominates, so the buffer does not
	// grow with the total stream size.
	if len(c.buf) == 0 {
		c.buf = nil
	}
	return out, nil
}

// Pending returns the number of buffered bytes that do not yet form a
// complete frame.
func (c *StreamConsumer) Pending() int {
	return len(c.buf)
}

// Finish checks that the stream ended on a frame boundary. Leftover
// bytes mean the client truncated its payload.
func (c *StreamConsumer) Finish() error {
	if len(c.buf) != 0 {
		return domain.ErrCorruptFrame.WithDetails("stream ended mid-frame")
	}
	return nil
}
