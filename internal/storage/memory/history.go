// Package memory provides the in-memory session history backend.
//
// Nothing survives a restart; it backs ephemeral sessions and tests.
package memory

import (
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
)

// DefaultBatchSize is the number of messages returned per catch-up batch.
const DefaultBatchSize = 100

// HistoryStore keeps one session's retained log in a slice. It
// implements the history backend interface and inherits the façade's
// single-owner serialization; it holds no locks of its own.
type HistoryStore struct {
	messages []domain.Message

	// streamBuf holds the compacted payload of an in-flight streamed
	// reset; streamCut is the live-log length recorded when the stream
	// opened, i.e. where the preserved tail begins at resolve time.
	streamBuf  []domain.Message
	streamCut  int
	streamOpen bool

	thumbnail   []byte
	thumbnailAt time.Time

	batchSize int
}

// NewHistoryStore returns an empty in-memory history backend.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{batchSize: DefaultBatchSize}
}

// HistoryAdd appends one message to the live log.
func (s *HistoryStore) HistoryAdd(msg domain.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

// HistoryReset replaces the entire retained log.
func (s *HistoryStore) HistoryReset(newHistory []domain.Message) error {
	s.messages = append([]domain.Message(nil), newHistory...)
	return nil
}

// GetBatch returns up to DefaultBatchSize messages starting at offset.
func (s *HistoryStore) GetBatch(offset int64) ([]domain.Message, error) {
	if offset < 0 || offset >= int64(len(s.messages)) {
		return nil, nil
	}
	end := offset + int64(s.batchSize)
	if end > int64(len(s.messages)) {
		end = int64(len(s.messages))
	}
	return append([]domain.Message(nil), s.messages[offset:end]...), nil
}

// MessageCount returns the number of retained messages.
func (s *HistoryStore) MessageCount() int {
	return len(s.messages)
}

// OpenResetStream starts buffering a compacted payload, seeded with the
// server-side state messages, and records the current end of the live
// log as the splice point.
func (s *HistoryStore) OpenResetStream(serverSideState []domain.Message) error {
	s.streamBuf = append([]domain.Message(nil), serverSideState...)
	s.streamCut = len(s.messages)
	s.streamOpen = true
	return nil
}

// AddResetStreamMessage buffers one message of the compacted payload.
func (s *HistoryStore) AddResetStreamMessage(msg domain.Message) error {
	if !s.streamOpen {
		return domain.ErrResetStreamNotOpen
	}
	s.streamBuf = append(s.streamBuf, msg)
	return nil
}

// PrepareResetStream is a no-op for the in-memory store; the buffer is
// already complete in memory.
func (s *HistoryStore) PrepareResetStream() error {
	if !s.streamOpen {
		return domain.ErrResetStreamNotOpen
	}
	return nil
}

// ResolveResetStream splices the buffered payload in front of the tail
// appended since the stream opened and makes the result the retained
// log. It returns the message count and byte size of the new log.
func (s *HistoryStore) ResolveResetStream(newFirstIndex int64) (int64, int64, error) {
	if !s.streamOpen {
		return 0, 0, domain.ErrResetStreamNotOpen
	}
	newLog := make([]domain.Message, 0, len(s.streamBuf)+len(s.messages)-s.streamCut)
	newLog = append(newLog, s.streamBuf...)
	newLog = append(newLog, s.messages[s.streamCut:]...)
	s.messages = newLog
	s.discard()

	var size int64
	for _, msg := range newLog {
		size += msg.Length()
	}
	return int64(len(newLog)), size, nil
}

// DiscardResetStream drops the buffered payload; the live log is untouched.
func (s *HistoryStore) DiscardResetStream() {
	s.discard()
}

func (s *HistoryStore) discard() {
	s.streamBuf = nil
	s.streamCut = 0
	s.streamOpen = false
}

// SetThumbnail stores the session thumbnail; empty data clears it.
func (s *HistoryStore) SetThumbnail(data []byte) error {
	if len(data) == 0 {
		s.thumbnail = nil
		s.thumbnailAt = time.Time{}
		return nil
	}
	s.thumbnail = append([]byte(nil), data...)
	s.thumbnailAt = time.Now()
	return nil
}

// Thumbnail returns the stored thumbnail and its generation time.
func (s *HistoryStore) Thumbnail() ([]byte, time.Time, bool) {
	if s.thumbnail == nil {
		return nil, time.Time{}, false
	}
	return s.thumbnail, s.thumbnailAt, true
}
