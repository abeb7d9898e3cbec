package history

import (
	"errors"

	"github.com/oxleyk/drawhub/internal/core/domain"
)

// streamState tracks the phases of a streamed reset.
type streamState int

const (
	streamStreaming streamState = iota
	streamPrepared
)

func (s streamState) String() string {
	switch s {
	case streamStreaming:
		return "streaming"
	case streamPrepared:
		return "prepared"
	default:
		return "unknown"
	}
}

// resetStream is the bookkeeping for one in-flight streamed reset.
// A nil History.stream means no reset is active.
type resetStream struct {
	state        streamState
	ownerCtxID   uint8
	correlator   string
	streamedSize int64
	messageCount int64
	startIndex   int64
}

// StartStreamedReset begins a streamed reset driven by the client with
// the given context ID. Two markers are appended to the live log under
// the regular budget: a soft reset that tells clients to drop their
// replayable prefix, and the stream start notice carrying the
// correlator. serverSideState is the server-generated head of the
// eventual compacted payload (e.g. remembered user join messages).
func (h *History) StartStreamedReset(ctxID uint8, correlator string, serverSideState []domain.Message) StartStreamResult {
	if h.stream != nil {
		return StartAlreadyActive
	}

	softReset := domain.MakeSoftReset(0)
	streamStart := domain.MakeStreamResetStart(ctxID, correlator)
	if !h.hasRegularSpaceFor(softReset.Length() + streamStart.Length()) {
		return StartOutOfSpace
	}

	h.addMessageInternal(softReset, softReset.Length())
	h.addMessageInternal(streamStart, streamStart.Length())

	result := StartOk
	if err := h.backend.OpenResetStream(serverSideState); err != nil {
		h.log.Error("opening reset stream failed", "error", err)
		result = StartBackendError
	} else {
		h.stream = &resetStream{
			state:      streamStreaming,
			ownerCtxID: ctxID,
			correlator: correlator,
			startIndex: h.lastIndex + 1,
		}
		h.obs.StreamResetStarted()
	}

	h.notifyNewMessages()
	return result
}

// AddStreamResetMessage feeds one reset-stream chunk from the driving
// client. The chunk's frame data is run through the stream consumer and
// every fully reconstructed message is validated and buffered. Any
// reconstruction or validation failure aborts the whole stream.
func (h *History) AddStreamResetMessage(ctxID uint8, msg domain.Message) AddStreamResult {
	s := h.stream
	if s == nil || s.state != streamStreaming {
		return AddNotActive
	}
	if s.ownerCtxID != ctxID {
		return AddInvalidUser
	}
	if msg.Kind() != domain.KindResetStream {
		return AddBadType
	}

	data := msg.Payload()
	if len(data) == 0 {
		return AddOk
	}

	if h.consumer == nil {
		h.consumer = NewStreamConsumer()
	}
	reconstructed, err := h.consumer.Feed(data)
	if err != nil {
		h.log.Warn("reset stream chunk rejected", "error", err)
		h.abortActiveStream()
		return AddConsumerError
	}
	for _, m := range reconstructed {
		if result := h.receiveResetStreamMessage(m); result != AddOk {
			h.abortActiveStream()
			return result
		}
	}
	return AddOk
}

// receiveResetStreamMessage validates and buffers one reconstructed
// message of the compacted payload.
func (h *History) receiveResetStreamMessage(msg domain.Message) AddStreamResult {
	if msg.IsControl() || msg.IsServerMeta() {
		return AddDisallowedType
	}

	s := h.stream
	newSize := s.streamedSize + msg.Length()
	if h.sizeLimit > 0 && newSize > h.sizeLimit {
		return AddOutOfSpace
	}
	s.streamedSize = newSize

	if msg.ContextID() != s.ownerCtxID {
		msg = msg.WithContextID(s.ownerCtxID)
	}

	if err := h.backend.AddResetStreamMessage(msg); err != nil {
		h.log.Error("buffering reset stream message failed", "error", err)
		if errors.Is(err, domain.ErrOutOfSpace) {
			return AddOutOfSpace
		}
		return AddConsumerError
	}
	s.messageCount++
	return AddOk
}

// PrepareStreamedReset finishes the streaming phase. The client states
// how many messages its compacted payload contained; a mismatch with
// what was actually reconstructed means the stream is corrupt and the
// reset is aborted. On success the backend finalizes the side buffer and
// the stream moves to the prepared phase, waiting for resolve.
func (h *History) PrepareStreamedReset(ctxID uint8, expectedMessageCount int64) PrepareStreamResult {
	s := h.stream
	if s == nil || s.state != streamStreaming {
		return PrepareNotActive
	}
	if s.ownerCtxID != ctxID {
		return PrepareInvalidUser
	}

	if h.consumer != nil {
		err := h.consumer.Finish()
		h.consumer = nil
		if err != nil {
			h.log.Warn("reset stream left incomplete frame", "error", err)
			h.abortActiveStream()
			return PrepareConsumerError
		}
	}

	if s.messageCount != expectedMessageCount || expectedMessageCount == 0 {
		h.log.Warn("reset stream message count mismatch",
			"expected", expectedMessageCount, "received", s.messageCount)
		h.abortActiveStream()
		return PrepareInvalidMessageCount
	}

	// The caught-up marker tells joining clients where the compacted
	// prefix ends. It goes straight to the side buffer; it is not part
	// of the client's payload and skips content validation.
	if err := h.backend.AddResetStreamMessage(domain.MakeCaughtUp(0, 0)); err != nil {
		h.log.Error("appending caught-up marker failed", "error", err)
		h.abortActiveStream()
		if errors.Is(err, domain.ErrOutOfSpace) {
			return PrepareOutOfSpace
		}
		return PrepareConsumerError
	}

	if err := h.backend.PrepareResetStream(); err != nil {
		h.log.Error("preparing reset stream failed", "error", err)
		h.abortActiveStream()
		if errors.Is(err, domain.ErrOutOfSpace) {
			return PrepareOutOfSpace
		}
		return PrepareConsumerError
	}

	s.state = streamPrepared
	s.ownerCtxID = 0
	return PrepareOk
}

// ResolveStreamedReset splices the prepared compacted payload in front
// of the tail recorded since the stream started, making it the new
// retained log. It returns the number of messages in the new log, which
// callers use as the catch-up offset for connected clients. Whether it
// succeeds or fails, the stream is over afterwards.
func (h *History) ResolveStreamedReset() (int64, error) {
	s := h.stream
	if s == nil || s.state != streamPrepared {
		return 0, domain.ErrResetStreamNotPrepared
	}

	newFirstIndex := h.lastIndex + 1
	messageCount, sizeInBytes, err := h.backend.ResolveResetStream(newFirstIndex)
	streamedSize := s.streamedSize
	h.stream = nil
	if err != nil {
		h.obs.StreamResetAborted()
		return 0, domain.ErrStorageError.WithCause(err)
	}

	h.sizeInBytes = sizeInBytes
	h.firstIndex = newFirstIndex
	h.lastIndex += messageCount
	h.autoResetBaseSize = streamedSize
	h.obs.StreamResetResolved(sizeInBytes)
	return messageCount, nil
}

// AbortStreamedReset cancels an in-flight streamed reset and discards
// everything buffered for it; the live log is untouched. A negative
// ctxID is the server acting on its own authority (e.g. the driving
// client disconnected) and may abort any stream, including a prepared
// one.
func (h *History) AbortStreamedReset(ctxID int) AbortStreamResult {
	s := h.stream
	if s == nil {
		return AbortNotActive
	}
	if ctxID >= 0 && uint8(ctxID) != s.ownerCtxID {
		return AbortInvalidUser
	}
	h.abortActiveStream()
	return AbortOk
}

func (h *History) abortActiveStream() {
	h.backend.DiscardResetStream()
	h.stream = nil
	h.consumer = nil
	h.obs.StreamResetAborted()
}

// ResetStreamStatus is the introspection snapshot of an in-flight
// streamed reset.
type ResetStreamStatus struct {
	State         string `json:"state"`
	OwnerContext  uint8  `json:"owner_context,omitempty"`
	StreamedBytes int64  `json:"streamed_bytes"`
	MessageCount  int64  `json:"message_count"`
	StartIndex    int64  `json:"start_index"`
}

// DescribeResetStream returns the current streamed-reset snapshot, or
// nil when no reset is active.
func (h *History) DescribeResetStream() *ResetStreamStatus {
	s := h.stream
	if s == nil {
		return nil
	}
	return &ResetStreamStatus{
		State:         s.state.String(),
		OwnerContext:  s.ownerCtxID,
		StreamedBytes: s.streamedSize,
		MessageCount:  s.messageCount,
		StartIndex:    s.startIndex,
	}
}
