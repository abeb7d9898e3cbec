package history

import (
	"math"
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/internal/telemetry/logger"
)

// History size accounting constants.
const (
	// absoluteSizeLimit is the implementation ceiling on any configured
	// size limit. Positions and sizes are exchanged with clients as
	// 32-bit quantities.
	absoluteSizeLimit = int64(math.MaxInt32)

	// emergencyReserve is the relaxed allowance on top of the regular
	// size limit, used only for messages that must not be silently
	// dropped (e.g. disconnect notices).
	emergencyReserve = int64(64 << 10)
)

// Catch-up key range. Keys wrap within a bounded positive range; they
// only correlate one client's catch-up batch with its completion notice,
// so the range just has to be large enough to avoid ambiguity within a
// single client's in-flight batches.
const (
	minCatchupKey = 1
	maxCatchupKey = 1 << 20
)

// Options configures a History.
type Options struct {
	// SizeLimit is the regular byte budget for retained content.
	// Zero means unlimited, subject to the absolute ceiling.
	SizeLimit int64

	// AutoResetThreshold is the growth in bytes since the last
	// compaction at which an automatic reset should be requested.
	// Zero disables auto-reset.
	AutoResetThreshold int64

	// Logger receives structured history events. Defaults to the
	// process-wide logger.
	Logger logger.Logger

	// Observer receives lifecycle events for metrics. Optional.
	Observer Observer

	// OnNewMessages is invoked after every successful append or reset so
	// the session layer can fan new content out to connected clients.
	// Optional; invoked on the caller's goroutine.
	OnNewMessages func()
}

// History is the authoritative history log of one session, together with
// the session-scoped invite table and thumbnail coordination.
//
// Not safe for concurrent use; see the package documentation.
type History struct {
	id        string
	startTime time.Time

	// epoch is the last full-reset timestamp in Unix milliseconds.
	// History indices are only comparable within one epoch.
	epoch int64

	firstIndex int64
	lastIndex  int64

	sizeInBytes        int64
	sizeLimit          int64
	autoResetThreshold int64
	autoResetBaseSize  int64

	backend       Backend
	log           logger.Logger
	obs           Observer
	onNewMessages func()

	stream   *resetStream
	consumer *StreamConsumer

	invites map[string]*domain.Invite

	bans      map[int]*domain.BanEntry
	nextBanID int

	thumbCtxID      uint8
	thumbCorrelator string

	nextCatchupKey int

	authOps       map[string]struct{}
	authTrusted   map[string]struct{}
	authUsernames map[string]string
}

// New creates a History for the given session backed by the given store.
// The log starts empty; call HistoryLoaded to seed counters from
// persisted storage before appending.
func New(id string, backend Backend, opts Options) *History {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver{}
	}

	return &History{
		id:                 id,
		startTime:          time.Now(),
		epoch:              time.Now().UnixMilli(),
		firstIndex:         0,
		lastIndex:          -1,
		sizeLimit:          clampSizeLimit(opts.SizeLimit),
		autoResetThreshold: opts.AutoResetThreshold,
		backend:            backend,
		log:                log.With("session_id", id),
		obs:                obs,
		onNewMessages:      opts.OnNewMessages,
		invites:            make(map[string]*domain.Invite),
		bans:               make(map[int]*domain.BanEntry),
		nextCatchupKey:     minCatchupKey,
		authOps:            make(map[string]struct{}),
		authTrusted:        make(map[string]struct{}),
		authUsernames:      make(map[string]string),
	}
}

// ID returns the session identifier.
func (h *History) ID() string { return h.id }

// StartTime returns when this history was instantiated.
func (h *History) StartTime() time.Time { return h.startTime }

// Epoch returns the last full-reset timestamp in Unix milliseconds.
func (h *History) Epoch() int64 { return h.epoch }

// FirstIndex returns the position of the oldest retained message.
func (h *History) FirstIndex() int64 { return h.firstIndex }

// LastIndex returns the position of the newest retained message, or
// firstIndex-1 when the log is empty.
func (h *History) LastIndex() int64 { return h.lastIndex }

// SizeInBytes returns the committed size of the retained log.
func (h *History) SizeInBytes() int64 { return h.sizeInBytes }

// SizeLimit returns the effective regular byte budget. Zero means
// unlimited.
func (h *History) SizeLimit() int64 { return h.sizeLimit }

// SetSizeLimit updates the regular byte budget, clamped to the absolute
// ceiling. Shrinking below the current size does not evict content; it
// only rejects further appends.
func (h *History) SetSizeLimit(limit int64) {
	h.sizeLimit = clampSizeLimit(limit)
}

// SetAutoResetThreshold updates the auto-reset growth threshold.
func (h *History) SetAutoResetThreshold(threshold int64) {
	h.autoResetThreshold = threshold
}

func clampSizeLimit(limit int64) int64 {
	if limit < 0 {
		return 0
	}
	if limit > absoluteSizeLimit {
		return absoluteSizeLimit
	}
	return limit
}

func (h *History) hasSpaceFor(bytes, extra int64) bool {
	return h.sizeLimit <= 0 || h.sizeInBytes+bytes <= h.sizeLimit+extra
}

func (h *History) hasRegularSpaceFor(bytes int64) bool {
	return h.hasSpaceFor(bytes, 0)
}

func (h *History) hasEmergencySpaceFor(bytes int64) bool {
	return h.hasSpaceFor(bytes, emergencyReserve)
}

// HistoryLoaded seeds the size and position counters from persisted
// storage. It must be called exactly once, before any append, and only
// for histories whose backend recovered prior content.
func (h *History) HistoryLoaded(size int64, messageCount int64) {
	if h.lastIndex != -1 {
		h.log.Error("HistoryLoaded called on a non-empty history",
			"last_index", h.lastIndex)
		return
	}
	h.sizeInBytes = size
	h.lastIndex = messageCount - 1
	h.autoResetBaseSize = size
}

// AddMessage appends a message under the regular budget. It reports
// whether the message was recorded; a false return leaves all counters
// untouched.
func (h *History) AddMessage(msg domain.Message) bool {
	bytes := msg.Length()
	if !h.hasRegularSpaceFor(bytes) {
		h.obs.MessageRejected()
		return false
	}
	h.addMessageInternal(msg, bytes)
	h.notifyNewMessages()
	return true
}

// AddEmergencyMessage appends a message under the relaxed emergency
// budget. Reserved for control messages that must not be dropped even
// when the session is otherwise full.
func (h *History) AddEmergencyMessage(msg domain.Message) bool {
	bytes := msg.Length()
	if !h.hasEmergencySpaceFor(bytes) {
		h.obs.MessageRejected()
		return false
	}
	h.addMessageInternal(msg, bytes)
	h.notifyNewMessages()
	return true
}

func (h *History) addMessageInternal(msg domain.Message, bytes int64) {
	h.sizeInBytes += bytes
	h.lastIndex++
	if err := h.backend.HistoryAdd(msg); err != nil {
		// The counters stay authoritative; a backend that loses writes is
		// surfaced loudly but does not corrupt the in-memory accounting.
		h.log.Error("backend append failed", "error", err, "index", h.lastIndex)
	}
	h.obs.MessageAppended(bytes)
}

// Reset replaces the entire retained log with newHistory, advancing the
// epoch. It fails without mutation when the new content alone exceeds
// the size limit. Any in-flight streamed reset is aborted first.
func (h *History) Reset(newHistory []domain.Message) bool {
	var newSize int64
	for _, msg := range newHistory {
		newSize += msg.Length()
	}
	if h.sizeLimit > 0 && newSize > h.sizeLimit {
		return false
	}

	if h.stream != nil {
		h.abortActiveStream()
	}

	h.sizeInBytes = newSize
	h.epoch = time.Now().UnixMilli()
	h.firstIndex = h.lastIndex + 1
	h.lastIndex += int64(len(newHistory))
	h.resetAutoResetBaseline()
	if err := h.backend.HistoryReset(newHistory); err != nil {
		h.log.Error("backend reset failed", "error", err)
	}
	h.obs.ResetApplied(newSize)
	h.notifyNewMessages()
	return true
}

// GetBatch returns a batch of retained messages with positions greater
// than after, together with the position of the last returned message.
// Callers replay batches in a loop until the returned position reaches
// LastIndex. An after value below the retained range is clamped to the
// start of the log.
func (h *History) GetBatch(after int64) ([]domain.Message, int64, error) {
	if after >= h.lastIndex {
		return nil, h.lastIndex, nil
	}
	start := after + 1
	if start < h.firstIndex {
		start = h.firstIndex
	}
	msgs, err := h.backend.GetBatch(start - h.firstIndex)
	if err != nil {
		return nil, after, domain.ErrStorageError.WithCause(err)
	}
	return msgs, start + int64(len(msgs)) - 1, nil
}

// HistoryIndex returns the current (session, epoch, position) triple.
func (h *History) HistoryIndex() domain.HistoryIndex {
	return domain.NewHistoryIndex(h.id, h.epoch, h.lastIndex)
}

// CanSkipTo reports whether a client presenting the given cached index
// may resume from it instead of re-downloading the whole log.
func (h *History) CanSkipTo(hi domain.HistoryIndex) bool {
	return hi.IsValid() &&
		hi.SessionID == h.id &&
		hi.Epoch == h.epoch &&
		hi.Position >= h.firstIndex &&
		hi.Position <= h.lastIndex
}

// EffectiveAutoResetThreshold returns the absolute size at which an
// automatic reset should be requested, or 0 when auto-reset is disabled.
// The threshold measures growth since the last compaction, clamped to
// 90% of the size limit when one is set.
func (h *History) EffectiveAutoResetThreshold() int64 {
	t := h.autoResetThreshold
	if t <= 0 {
		return 0
	}
	t += h.autoResetBaseSize
	if h.sizeLimit > 0 {
		if clamp := h.sizeLimit * 9 / 10; t > clamp {
			t = clamp
		}
	}
	return t
}

func (h *History) resetAutoResetBaseline() {
	h.autoResetBaseSize = h.sizeInBytes
}

// NextCatchupKey hands out the next catch-up correlation key, wrapping
// within the bounded key range.
func (h *History) NextCatchupKey() int {
	key := h.nextCatchupKey
	if key < maxCatchupKey {
		h.nextCatchupKey = key + 1
	} else {
		h.nextCatchupKey = minCatchupKey
	}
	return key
}

// SetAuthenticatedOperator marks or clears op status remembered for an
// authenticated account, so the tier survives reconnects.
func (h *History) SetAuthenticatedOperator(authID string, op bool) {
	if op {
		h.authOps[authID] = struct{}{}
	} else {
		delete(h.authOps, authID)
	}
}

// IsAuthenticatedOperator reports remembered op status.
func (h *History) IsAuthenticatedOperator(authID string) bool {
	_, ok := h.authOps[authID]
	return ok
}

// SetAuthenticatedTrust marks or clears remembered trusted status.
func (h *History) SetAuthenticatedTrust(authID string, trusted bool) {
	if trusted {
		h.authTrusted[authID] = struct{}{}
	} else {
		delete(h.authTrusted, authID)
	}
}

// IsAuthenticatedTrusted reports remembered trusted status.
func (h *History) IsAuthenticatedTrusted(authID string) bool {
	_, ok := h.authTrusted[authID]
	return ok
}

// SetAuthenticatedUsername remembers the display name last used by an
// authenticated account.
func (h *History) SetAuthenticatedUsername(authID, username string) {
	h.authUsernames[authID] = username
}

// AuthenticatedUsernameFor returns the remembered display name for an
// authenticated account, if any.
func (h *History) AuthenticatedUsernameFor(authID string) (string, bool) {
	name, ok := h.authUsernames[authID]
	return name, ok
}

func (h *History) notifyNewMessages() {
	if h.onNewMessages != nil {
		h.onNewMessages()
	}
}

// Status is the introspection snapshot of a history, served by the
// status API.
type Status struct {
	ID                 string             `json:"id"`
	StartedAt          string             `json:"started_at"`
	Epoch              int64              `json:"epoch"`
	FirstIndex         int64              `json:"first_index"`
	LastIndex          int64              `json:"last_index"`
	SizeBytes          int64              `json:"size_bytes"`
	SizeLimit          int64              `json:"size_limit"`
	AutoResetThreshold int64              `json:"auto_reset_threshold"`
	InviteCount        int                `json:"invite_count"`
	BanCount           int                `json:"ban_count"`
	ResetStream        *ResetStreamStatus `json:"reset_stream,omitempty"`
	Thumbnail          *ThumbnailStatus   `json:"thumbnail,omitempty"`
}

// Describe returns the introspection snapshot for this history.
func (h *History) Describe() Status {
	return Status{
		ID:                 h.id,
		StartedAt:          h.startTime.UTC().Format(time.RFC3339),
		Epoch:              h.epoch,
		FirstIndex:         h.firstIndex,
		LastIndex:          h.lastIndex,
		SizeBytes:          h.sizeInBytes,
		SizeLimit:          h.sizeLimit,
		AutoResetThreshold: h.EffectiveAutoResetThreshold(),
		InviteCount:        len(h.invites),
		BanCount:           len(h.bans),
		ResetStream:        h.DescribeResetStream(),
		Thumbnail:          h.DescribeThumbnail(),
	}
}
