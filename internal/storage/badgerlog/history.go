// Package badgerlog implements the persistent session history backend
// on top of the shared storage engine.
//
// Each session owns a slice of the key space:
//
//	m/<session>/<seq>  live log messages
//	s/<session>/<seq>  reset-stream side buffer
//	t/<session>        thumbnail blob
//
// Sequence numbers are big-endian uint64 so byte order equals append
// order. They are physical storage coordinates; the logical history
// positions live in the history façade.
package badgerlog

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/internal/storage"
)

// DefaultBatchSize is the number of messages returned per catch-up batch.
const DefaultBatchSize = 100

// HistoryStore is one session's persistent history backend. Like every
// history backend it relies on the façade's single-owner serialization
// and holds no locks.
type HistoryStore struct {
	engine    *storage.Engine
	db        *badger.DB
	sessionID string

	// Physical bounds of the live log: retained entries occupy
	// [firstSeq, nextSeq).
	firstSeq uint64
	nextSeq  uint64

	// streamCut is nextSeq at the moment the stream opened; entries at
	// and above it are the preserved tail.
	streamNext uint64
	streamCut  uint64
	streamOpen bool

	batchSize int
}

// New returns the history store for the given session. Call Recover to
// seed counters from persisted content before use.
func New(engine *storage.Engine, sessionID string) *HistoryStore {
	return &HistoryStore{
		engine:    engine,
		db:        engine.DB(),
		sessionID: sessionID,
		batchSize: DefaultBatchSize,
	}
}

func (s *HistoryStore) logKey(seq uint64) []byte    { return seqKey('m', s.sessionID, seq) }
func (s *HistoryStore) streamKey(seq uint64) []byte { return seqKey('s', s.sessionID, seq) }
func (s *HistoryStore) logPrefix() []byte           { return []byte("m/" + s.sessionID + "/") }
func (s *HistoryStore) streamPrefix() []byte        { return []byte("s/" + s.sessionID + "/") }
func (s *HistoryStore) thumbnailKey() []byte        { return []byte("t/" + s.sessionID) }

func seqKey(kind byte, sessionID string, seq uint64) []byte {
	key := make([]byte, 0, len(sessionID)+11)
	key = append(key, kind, '/')
	key = append(key, sessionID...)
	key = append(key, '/')
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

// Recover scans persisted content and seeds the physical bounds. It
// returns the byte size and message count for the façade's
// HistoryLoaded call, and reports whether any content was found. A
// leftover stream buffer from a crash mid-reset is discarded.
func (s *HistoryStore) Recover() (size int64, count int64, found bool, err error) {
	if err := s.db.DropPrefix(s.streamPrefix()); err != nil {
		return 0, 0, false, fmt.Errorf("badgerlog: drop stale stream: %w", err)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.logPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key()[len(item.Key())-8:])
			if !found {
				s.firstSeq = seq
				found = true
			}
			s.nextSeq = seq + 1

			stored, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			msg, err := s.decodeStored(item.Key(), stored)
			if err != nil {
				return err
			}
			size += msg.Length()
			count++
		}
		return nil
	})
	if err != nil {
		return 0, 0, false, fmt.Errorf("badgerlog: recover %s: %w", s.sessionID, err)
	}
	return size, count, found, nil
}

// HistoryAdd appends one message to the live log.
func (s *HistoryStore) HistoryAdd(msg domain.Message) error {
	key := s.logKey(s.nextSeq)
	value, err := s.encodeStored(key, msg)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badgerlog: append: %w", err)
	}
	s.nextSeq++
	return nil
}

// HistoryReset drops the entire live log and writes newHistory from
// sequence zero.
func (s *HistoryStore) HistoryReset(newHistory []domain.Message) error {
	if err := s.db.DropPrefix(s.logPrefix()); err != nil {
		return fmt.Errorf("badgerlog: reset drop: %w", err)
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, msg := range newHistory {
		key := s.logKey(uint64(i))
		value, err := s.encodeStored(key, msg)
		if err != nil {
			return err
		}
		if err := wb.Set(key, value); err != nil {
			return fmt.Errorf("badgerlog: reset write: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badgerlog: reset flush: %w", err)
	}
	s.firstSeq = 0
	s.nextSeq = uint64(len(newHistory))
	return nil
}

// GetBatch returns up to DefaultBatchSize messages starting at offset.
func (s *HistoryStore) GetBatch(offset int64) ([]domain.Message, error) {
	if offset < 0 {
		return nil, nil
	}
	start := s.firstSeq + uint64(offset)
	if start >= s.nextSeq {
		return nil, nil
	}
	end := start + uint64(s.batchSize)
	if end > s.nextSeq {
		end = s.nextSeq
	}
	return s.readLogRange(start, end)
}

// OpenResetStream starts buffering a compacted payload under the stream
// prefix and records the current end of the live log as the splice point.
func (s *HistoryStore) OpenResetStream(serverSideState []domain.Message) error {
	if err := s.db.DropPrefix(s.streamPrefix()); err != nil {
		return fmt.Errorf("badgerlog: open stream: %w", err)
	}
	s.streamNext = 0
	s.streamCut = s.nextSeq
	s.streamOpen = true
	for _, msg := range serverSideState {
		if err := s.AddResetStreamMessage(msg); err != nil {
			s.DiscardResetStream()
			return err
		}
	}
	return nil
}

// AddResetStreamMessage buffers one message of the compacted payload.
func (s *HistoryStore) AddResetStreamMessage(msg domain.Message) error {
	if !s.streamOpen {
		return domain.ErrResetStreamNotOpen
	}
	key := s.streamKey(s.streamNext)
	value, err := s.encodeStored(key, msg)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badgerlog: stream append: %w", err)
	}
	s.streamNext++
	return nil
}

// PrepareResetStream makes the buffered payload durable so resolve
// cannot fail for content reasons.
func (s *HistoryStore) PrepareResetStream() error {
	if !s.streamOpen {
		return domain.ErrResetStreamNotOpen
	}
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("badgerlog: prepare: %w", err)
	}
	return nil
}

// ResolveResetStream rewrites the retained log as the buffered prefix
// followed by the tail appended since the stream opened, at fresh
// sequence numbers past the current end. The old entries are deleted
// only after the new log is fully written, so a failure partway leaves
// the live log intact.
func (s *HistoryStore) ResolveResetStream(newFirstIndex int64) (int64, int64, error) {
	if !s.streamOpen {
		return 0, 0, domain.ErrResetStreamNotOpen
	}

	prefix, err := s.readStreamRange(0, s.streamNext)
	if err != nil {
		return 0, 0, err
	}
	tail, err := s.readLogRange(s.streamCut, s.nextSeq)
	if err != nil {
		return 0, 0, err
	}

	base := s.nextSeq
	seq := base
	var size int64
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, msg := range append(prefix, tail...) {
		key := s.logKey(seq)
		value, err := s.encodeStored(key, msg)
		if err != nil {
			return 0, 0, err
		}
		if err := wb.Set(key, value); err != nil {
			return 0, 0, fmt.Errorf("badgerlog: resolve write: %w", err)
		}
		seq++
		size += msg.Length()
	}
	if err := wb.Flush(); err != nil {
		return 0, 0, fmt.Errorf("badgerlog: resolve flush: %w", err)
	}

	// Point of no return: retire the old entries and the side buffer.
	del := s.db.NewWriteBatch()
	defer del.Cancel()
	for old := s.firstSeq; old < base; old++ {
		if err := del.Delete(s.logKey(old)); err != nil {
			return 0, 0, fmt.Errorf("badgerlog: resolve delete: %w", err)
		}
	}
	if err := del.Flush(); err != nil {
		return 0, 0, fmt.Errorf("badgerlog: resolve delete flush: %w", err)
	}

	s.firstSeq = base
	s.nextSeq = seq
	s.discard()
	count := int64(len(prefix) + len(tail))
	return count, size, nil
}

// DiscardResetStream drops the side buffer; the live log is untouched.
func (s *HistoryStore) DiscardResetStream() {
	// Removal failures only leak keys until the next stream opens; the
	// prefix is dropped again then.
	_ = s.db.DropPrefix(s.streamPrefix())
	s.discard()
}

func (s *HistoryStore) discard() {
	s.streamNext = 0
	s.streamCut = 0
	s.streamOpen = false
}

// SetThumbnail stores the session thumbnail; empty data deletes it.
func (s *HistoryStore) SetThumbnail(data []byte) error {
	key := s.thumbnailKey()
	if len(data) == 0 {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
	}

	raw := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(raw[:8], uint64(time.Now().UnixMilli()))
	copy(raw[8:], data)
	value, err := s.engine.EncodeValue(key, raw)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Thumbnail returns the stored thumbnail and its generation time.
func (s *HistoryStore) Thumbnail() ([]byte, time.Time, bool) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.thumbnailKey())
		if err != nil {
			return err
		}
		stored, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		raw, err = s.engine.DecodeValue(s.thumbnailKey(), stored)
		return err
	})
	if err != nil || len(raw) < 8 {
		return nil, time.Time{}, false
	}
	at := time.UnixMilli(int64(binary.BigEndian.Uint64(raw[:8])))
	return raw[8:], at, true
}

// Purge removes every key belonging to this session.
func (s *HistoryStore) Purge() error {
	for _, prefix := range [][]byte{s.logPrefix(), s.streamPrefix(), s.thumbnailKey()} {
		if err := s.db.DropPrefix(prefix); err != nil {
			return fmt.Errorf("badgerlog: purge %s: %w", s.sessionID, err)
		}
	}
	s.firstSeq = 0
	s.nextSeq = 0
	s.discard()
	return nil
}

func (s *HistoryStore) readLogRange(start, end uint64) ([]domain.Message, error) {
	return s.readRange(s.logKey, start, end)
}

func (s *HistoryStore) readStreamRange(start, end uint64) ([]domain.Message, error) {
	return s.readRange(s.streamKey, start, end)
}

func (s *HistoryStore) readRange(keyFn func(uint64) []byte, start, end uint64) ([]domain.Message, error) {
	if start >= end {
		return nil, nil
	}
	out := make([]domain.Message, 0, end-start)
	err := s.db.View(func(txn *badger.Txn) error {
		for seq := start; seq < end; seq++ {
			key := keyFn(seq)
			item, err := txn.Get(key)
			if err != nil {
				return fmt.Errorf("seq %d: %w", seq, err)
			}
			stored, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			msg, err := s.decodeStored(key, stored)
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerlog: read range: %w", err)
	}
	return out, nil
}

func (s *HistoryStore) encodeStored(key []byte, msg domain.Message) ([]byte, error) {
	value, err := s.engine.EncodeValue(key, domain.EncodeFrame(msg))
	if err != nil {
		return nil, fmt.Errorf("badgerlog: encode value: %w", err)
	}
	return value, nil
}

func (s *HistoryStore) decodeStored(key, stored []byte) (domain.Message, error) {
	plain, err := s.engine.DecodeValue(key, stored)
	if err != nil {
		return domain.Message{}, fmt.Errorf("badgerlog: decode value: %w", err)
	}
	if len(plain) < domain.FrameHeaderSize() {
		return domain.Message{}, domain.ErrCorruptFrame
	}
	return domain.DecodeFrameBody(plain[domain.FrameHeaderSize():])
}
