package history

import (
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
)

// Backend is the storage capability set injected into a History.
//
// The History owns all index and size bookkeeping; the backend only
// stores and retrieves message content. During a streamed reset the
// backend buffers the incoming compacted payload separately from the
// live log, so an aborted stream never touches committed content, and a
// resolved one is applied as a single splice.
type Backend interface {
	// HistoryAdd appends one message to the live log.
	HistoryAdd(msg domain.Message) error

	// HistoryReset replaces the entire retained log content.
	HistoryReset(newHistory []domain.Message) error

	// GetBatch returns up to an implementation-chosen number of retained
	// messages starting at the given zero-based offset into the retained
	// log. Position-to-offset translation is the History's job.
	GetBatch(offset int64) ([]domain.Message, error)

	// OpenResetStream opens the side buffer for a streamed reset. The
	// server-side state messages are the head of the eventual compacted
	// prefix. The backend records the current end of the live log as the
	// splice point; everything appended to the live log afterwards is
	// the tail preserved behind the prefix at resolve time.
	OpenResetStream(serverSideState []domain.Message) error

	// AddResetStreamMessage buffers one reconstructed message of the
	// compacted payload.
	AddResetStreamMessage(msg domain.Message) error

	// PrepareResetStream finalizes the side buffer so that resolve can
	// no longer fail for content reasons (e.g. flushes buffered writes).
	PrepareResetStream() error

	// ResolveResetStream splices the buffered prefix in front of the
	// tail recorded since OpenResetStream and makes the result the
	// retained log. newFirstIndex is the log position the new content
	// starts at. It returns the message count and byte size of the full
	// new retained log. On error the live log must be left untouched.
	ResolveResetStream(newFirstIndex int64) (messageCount, sizeInBytes int64, err error)

	// DiscardResetStream drops the side buffer unconditionally.
	DiscardResetStream()

	// SetThumbnail stores the session thumbnail. An empty payload clears it.
	SetThumbnail(data []byte) error

	// Thumbnail returns the stored thumbnail and its generation time.
	Thumbnail() (data []byte, generatedAt time.Time, ok bool)
}
