package history_test

import (
	"strings"
	"testing"
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/internal/core/history"
	"github.com/oxleyk/drawhub/internal/storage/memory"
)

func newTestHistory(limit int64) (*history.History, *memory.HistoryStore) {
	store := memory.NewHistoryStore()
	h := history.New("dhss-test", store, history.Options{SizeLimit: limit})
	return h, store
}

// cmdOfLength builds a command message whose total accounted length is
// exactly n bytes.
func cmdOfLength(ctx uint8, n int64) domain.Message {
	payload := make([]byte, n-domain.MakeCommand(ctx, nil).Length())
	return domain.MakeCommand(ctx, payload)
}

func TestAppendAccounting(t *testing.T) {
	h, _ := newTestHistory(1000)

	if !h.AddMessage(cmdOfLength(1, 600)) {
		t.Fatal("600 byte append within a 1000 byte limit should succeed")
	}
	if got := h.SizeInBytes(); got != 600 {
		t.Errorf("SizeInBytes() = %d, want 600", got)
	}

	if h.AddMessage(cmdOfLength(1, 500)) {
		t.Fatal("500 byte append should exceed the remaining budget")
	}
	if got := h.SizeInBytes(); got != 600 {
		t.Errorf("SizeInBytes() after rejected append = %d, want 600", got)
	}
	if got := h.LastIndex(); got != 0 {
		t.Errorf("LastIndex() = %d, want 0", got)
	}
}

func TestEmergencyBudgetAllowsControlOverflow(t *testing.T) {
	h, _ := newTestHistory(100)
	h.AddMessage(cmdOfLength(1, 90))

	msg := cmdOfLength(2, 50)
	if h.AddMessage(msg) {
		t.Fatal("regular append past the limit should fail")
	}
	if !h.AddEmergencyMessage(msg) {
		t.Fatal("emergency append within the reserve should succeed")
	}
	if got := h.SizeInBytes(); got != 140 {
		t.Errorf("SizeInBytes() = %d, want 140", got)
	}
}

func TestNotifyNewMessages(t *testing.T) {
	store := memory.NewHistoryStore()
	notified := 0
	h := history.New("dhss-test", store, history.Options{
		OnNewMessages: func() { notified++ },
	})

	h.AddMessage(cmdOfLength(1, 50))
	h.Reset(nil)
	if notified != 2 {
		t.Errorf("notification fired %d times, want 2", notified)
	}
}

func TestFullResetAtomic(t *testing.T) {
	h, _ := newTestHistory(500)
	h.AddMessage(cmdOfLength(1, 100))
	h.AddMessage(cmdOfLength(1, 100))

	epochBefore := h.Epoch()
	tooBig := []domain.Message{cmdOfLength(1, 300), cmdOfLength(1, 300)}
	if h.Reset(tooBig) {
		t.Fatal("reset content over the size limit should be rejected")
	}
	if h.SizeInBytes() != 200 || h.Epoch() != epochBefore || h.FirstIndex() != 0 {
		t.Error("failed reset must not mutate the log")
	}

	time.Sleep(2 * time.Millisecond)
	newContent := []domain.Message{cmdOfLength(1, 150)}
	if !h.Reset(newContent) {
		t.Fatal("reset within the limit should succeed")
	}
	if h.Epoch() <= epochBefore {
		t.Error("successful reset must advance the epoch")
	}
	if h.FirstIndex() != 2 || h.LastIndex() != 2 {
		t.Errorf("bounds after reset = [%d, %d], want [2, 2]", h.FirstIndex(), h.LastIndex())
	}
	if h.SizeInBytes() != 150 {
		t.Errorf("SizeInBytes() = %d, want 150", h.SizeInBytes())
	}
}

func TestCanSkipTo(t *testing.T) {
	h, _ := newTestHistory(0)
	for i := 0; i < 5; i++ {
		h.AddMessage(cmdOfLength(1, 50))
	}

	hi := h.HistoryIndex()
	if !h.CanSkipTo(hi) {
		t.Error("current index should always be resumable")
	}
	if h.CanSkipTo(domain.NewHistoryIndex("dhss-other", hi.Epoch, hi.Position)) {
		t.Error("index from another session must not be resumable")
	}
	if h.CanSkipTo(domain.NewHistoryIndex(hi.SessionID, hi.Epoch+1, hi.Position)) {
		t.Error("index from another epoch must not be resumable")
	}
	if h.CanSkipTo(domain.NewHistoryIndex(hi.SessionID, hi.Epoch, 99)) {
		t.Error("index past the end must not be resumable")
	}
}

func TestHistoryLoadedSeedsCounters(t *testing.T) {
	h, _ := newTestHistory(0)
	h.HistoryLoaded(1234, 10)

	if h.SizeInBytes() != 1234 || h.LastIndex() != 9 {
		t.Errorf("seeded state = (%d bytes, last %d), want (1234, 9)",
			h.SizeInBytes(), h.LastIndex())
	}
}

func TestEffectiveAutoResetThreshold(t *testing.T) {
	store := memory.NewHistoryStore()
	h := history.New("dhss-test", store, history.Options{
		SizeLimit:          1000,
		AutoResetThreshold: 2000,
	})
	// Clamped to 90% of the size limit.
	if got := h.EffectiveAutoResetThreshold(); got != 900 {
		t.Errorf("EffectiveAutoResetThreshold() = %d, want 900", got)
	}

	h.SetAutoResetThreshold(0)
	if got := h.EffectiveAutoResetThreshold(); got != 0 {
		t.Errorf("disabled threshold = %d, want 0", got)
	}
}

func TestCatchupKeyWraps(t *testing.T) {
	const maxKey = 1 << 20

	h, _ := newTestHistory(0)
	first := h.NextCatchupKey()
	second := h.NextCatchupKey()
	if first != 1 || second != 2 {
		t.Errorf("first keys = %d, %d, want 1, 2", first, second)
	}

	// Drain the rest of the cycle and check the wrap back to 1.
	last := second
	for last < maxKey {
		last = h.NextCatchupKey()
		if last < 1 || last > maxKey {
			t.Fatalf("key %d outside [1, %d]", last, maxKey)
		}
	}
	if got := h.NextCatchupKey(); got != 1 {
		t.Errorf("key after %d = %d, want wrap to 1", maxKey, got)
	}
}

// streamChunks frames the given messages and splits the byte stream
// into chunks of the given size, deliberately misaligned with frame
// boundaries.
func streamChunks(msgs []domain.Message, chunkSize int) [][]byte {
	var all []byte
	for _, m := range msgs {
		all = append(all, domain.EncodeFrame(m)...)
	}
	var chunks [][]byte
	for len(all) > 0 {
		n := chunkSize
		if n > len(all) {
			n = len(all)
		}
		chunks = append(chunks, all[:n])
		all = all[n:]
	}
	return chunks
}

func TestStreamedResetRoundTrip(t *testing.T) {
	h, store := newTestHistory(0)
	for i := 0; i < 8; i++ {
		h.AddMessage(cmdOfLength(1, 100))
	}

	const owner = uint8(3)
	if res := h.StartStreamedReset(owner, "corr-1", nil); res != history.StartOk {
		t.Fatalf("StartStreamedReset() = %v", res)
	}

	// Ordinary traffic keeps flowing while the snapshot streams in.
	h.AddMessage(cmdOfLength(4, 100))
	h.AddMessage(cmdOfLength(5, 100))

	payload := []domain.Message{
		cmdOfLength(owner, 60),
		cmdOfLength(owner, 70),
		// Wrong author inside the payload gets retagged to the owner.
		cmdOfLength(9, 80),
	}
	for _, chunk := range streamChunks(payload, 7) {
		res := h.AddStreamResetMessage(owner, domain.MakeResetStreamChunk(owner, chunk))
		if res != history.AddOk {
			t.Fatalf("AddStreamResetMessage() = %v", res)
		}
	}

	if res := h.PrepareStreamedReset(owner, 3); res != history.PrepareOk {
		t.Fatalf("PrepareStreamedReset() = %v", res)
	}

	lastBefore := h.LastIndex()
	count, err := h.ResolveStreamedReset()
	if err != nil {
		t.Fatalf("ResolveStreamedReset: %v", err)
	}
	// 3 streamed + the caught-up marker + 2 messages appended during
	// streaming.
	if count != 6 {
		t.Errorf("resolved message count = %d, want 6", count)
	}
	if h.FirstIndex() != lastBefore+1 {
		t.Errorf("FirstIndex() = %d, want %d", h.FirstIndex(), lastBefore+1)
	}
	if h.LastIndex() != lastBefore+count {
		t.Errorf("LastIndex() = %d, want %d", h.LastIndex(), lastBefore+count)
	}
	if h.DescribeResetStream() != nil {
		t.Error("stream state should be cleared after resolve")
	}

	// Retagged author and preserved tail order.
	msgs, last, err := h.GetBatch(h.FirstIndex() - 1)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if last != h.LastIndex() || int64(len(msgs)) != count {
		t.Fatalf("GetBatch returned %d messages up to %d", len(msgs), last)
	}
	if msgs[2].ContextID() != owner {
		t.Errorf("streamed message author = %d, want retagged to %d", msgs[2].ContextID(), owner)
	}
	if msgs[4].ContextID() != 4 || msgs[5].ContextID() != 5 {
		t.Error("messages appended during streaming must follow the compacted prefix in order")
	}

	if store.MessageCount() != int(count) {
		t.Errorf("backend retains %d messages, want %d", store.MessageCount(), count)
	}
}

func TestAbortRestoresState(t *testing.T) {
	for _, prepare := range []bool{false, true} {
		h, _ := newTestHistory(0)
		h.AddMessage(cmdOfLength(1, 100))

		const owner = uint8(2)
		h.StartStreamedReset(owner, "corr", nil)
		sizeAfterStart := h.SizeInBytes()
		lastAfterStart := h.LastIndex()

		chunk := streamChunks([]domain.Message{cmdOfLength(owner, 50)}, 1000)[0]
		h.AddStreamResetMessage(owner, domain.MakeResetStreamChunk(owner, chunk))
		if prepare {
			if res := h.PrepareStreamedReset(owner, 1); res != history.PrepareOk {
				t.Fatalf("PrepareStreamedReset() = %v", res)
			}
		}

		if res := h.AbortStreamedReset(-1); res != history.AbortOk {
			t.Fatalf("AbortStreamedReset() = %v", res)
		}
		if h.SizeInBytes() != sizeAfterStart || h.LastIndex() != lastAfterStart {
			t.Errorf("prepare=%v: abort changed committed counters", prepare)
		}
		if h.DescribeResetStream() != nil {
			t.Errorf("prepare=%v: stream state not cleared", prepare)
		}
		if res := h.AbortStreamedReset(-1); res != history.AbortNotActive {
			t.Errorf("second abort = %v, want not_active", res)
		}
	}
}

func TestStreamGuards(t *testing.T) {
	h, _ := newTestHistory(0)
	const owner = uint8(2)

	chunk := domain.MakeResetStreamChunk(owner, []byte{1})
	if res := h.AddStreamResetMessage(owner, chunk); res != history.AddNotActive {
		t.Errorf("chunk without a stream = %v, want not_active", res)
	}

	h.StartStreamedReset(owner, "corr", nil)
	if res := h.StartStreamedReset(owner, "corr2", nil); res != history.StartAlreadyActive {
		t.Errorf("second start = %v, want already_active", res)
	}
	if res := h.AddStreamResetMessage(7, chunk); res != history.AddInvalidUser {
		t.Errorf("chunk from wrong user = %v, want invalid_user", res)
	}
	if res := h.AddStreamResetMessage(owner, domain.MakeChat(owner, "hi")); res != history.AddBadType {
		t.Errorf("non-chunk message = %v, want bad_type", res)
	}
	if res := h.AbortStreamedReset(9); res != history.AbortInvalidUser {
		t.Errorf("abort from wrong user = %v, want invalid_user", res)
	}
	if res := h.PrepareStreamedReset(9, 1); res != history.PrepareInvalidUser {
		t.Errorf("prepare from wrong user = %v, want invalid_user", res)
	}
}

func TestStartOutOfSpace(t *testing.T) {
	h, _ := newTestHistory(60)
	h.AddMessage(cmdOfLength(1, 55))

	if res := h.StartStreamedReset(2, "corr", nil); res != history.StartOutOfSpace {
		t.Errorf("StartStreamedReset() = %v, want out_of_space", res)
	}
	if h.DescribeResetStream() != nil {
		t.Error("failed start must not leave stream state behind")
	}
}

func TestDisallowedTypeAbortsStream(t *testing.T) {
	h, _ := newTestHistory(0)
	const owner = uint8(2)
	h.StartStreamedReset(owner, "corr", nil)

	chunk := streamChunks([]domain.Message{domain.MakeSoftReset(owner)}, 1000)[0]
	res := h.AddStreamResetMessage(owner, domain.MakeResetStreamChunk(owner, chunk))
	if res != history.AddDisallowedType {
		t.Fatalf("AddStreamResetMessage() = %v, want disallowed_type", res)
	}
	if h.DescribeResetStream() != nil {
		t.Error("disallowed content must abort the whole stream")
	}
}

func TestStreamedPayloadOutOfSpace(t *testing.T) {
	h, _ := newTestHistory(300)
	const owner = uint8(2)
	h.StartStreamedReset(owner, "corr", nil)

	chunk := streamChunks([]domain.Message{cmdOfLength(owner, 290)}, 1000)[0]
	res := h.AddStreamResetMessage(owner, domain.MakeResetStreamChunk(owner, chunk))
	if res != history.AddOutOfSpace {
		t.Fatalf("AddStreamResetMessage() = %v, want out_of_space", res)
	}
	if h.DescribeResetStream() != nil {
		t.Error("over-budget payload must abort the stream")
	}
}

func TestPrepareCountMismatchAborts(t *testing.T) {
	h, _ := newTestHistory(0)
	const owner = uint8(2)
	h.StartStreamedReset(owner, "corr", nil)

	chunk := streamChunks([]domain.Message{cmdOfLength(owner, 50)}, 1000)[0]
	h.AddStreamResetMessage(owner, domain.MakeResetStreamChunk(owner, chunk))

	if res := h.PrepareStreamedReset(owner, 5); res != history.PrepareInvalidMessageCount {
		t.Fatalf("PrepareStreamedReset() = %v, want invalid_message_count", res)
	}
	if h.DescribeResetStream() != nil {
		t.Error("count mismatch must abort the stream")
	}
}

func TestPrepareRejectsZeroCount(t *testing.T) {
	h, _ := newTestHistory(0)
	const owner = uint8(2)
	h.StartStreamedReset(owner, "corr", nil)

	if res := h.PrepareStreamedReset(owner, 0); res != history.PrepareInvalidMessageCount {
		t.Errorf("PrepareStreamedReset(0) = %v, want invalid_message_count", res)
	}
}

func TestPrepareRejectsPartialFrame(t *testing.T) {
	h, _ := newTestHistory(0)
	const owner = uint8(2)
	h.StartStreamedReset(owner, "corr", nil)

	full := streamChunks([]domain.Message{cmdOfLength(owner, 50)}, 1000)[0]
	truncated := full[:len(full)-3]
	h.AddStreamResetMessage(owner, domain.MakeResetStreamChunk(owner, truncated))

	if res := h.PrepareStreamedReset(owner, 1); res != history.PrepareConsumerError {
		t.Errorf("PrepareStreamedReset() = %v, want consumer_error", res)
	}
}

func TestResolveWithoutPrepare(t *testing.T) {
	h, _ := newTestHistory(0)
	if _, err := h.ResolveStreamedReset(); err == nil {
		t.Error("resolve without a prepared stream must fail")
	}

	h.StartStreamedReset(2, "corr", nil)
	if _, err := h.ResolveStreamedReset(); err == nil {
		t.Error("resolve in streaming state must fail")
	}
}

func TestFullResetAbortsStream(t *testing.T) {
	h, _ := newTestHistory(0)
	h.StartStreamedReset(2, "corr", nil)

	if !h.Reset([]domain.Message{cmdOfLength(1, 50)}) {
		t.Fatal("full reset should succeed")
	}
	if h.DescribeResetStream() != nil {
		t.Error("full reset must abort an in-flight stream")
	}
}

func TestInviteScenario(t *testing.T) {
	h, _ := newTestHistory(0)

	iv := h.CreateInvite("op", 1, false, false)
	if iv == nil {
		t.Fatal("CreateInvite returned nil")
	}

	res, _ := h.CheckInvite("A", "alice", iv.Secret, true)
	if res != history.InviteUsed {
		t.Fatalf("first consuming check = %v, want used", res)
	}
	res, _ = h.CheckInvite("A", "alice", iv.Secret, true)
	if res != history.InviteAlreadyInvited {
		t.Errorf("repeat check = %v, want already_invited", res)
	}
	res, _ = h.CheckInvite("A", "alicia", iv.Secret, true)
	if res != history.InviteAlreadyInvitedNameChanged {
		t.Errorf("renamed repeat = %v, want already_invited_name_changed", res)
	}
	res, _ = h.CheckInvite("B", "bob", iv.Secret, true)
	if res != history.InviteMaxUsesReached {
		t.Errorf("check from second client = %v, want max_uses_reached", res)
	}
	res, _ = h.CheckInvite("", "carol", iv.Secret, true)
	if res != history.InviteNoClientKey {
		t.Errorf("check without client key = %v, want no_client_key", res)
	}
	res, _ = h.CheckInvite("C", "carol", "nope", true)
	if res != history.InviteNotFound {
		t.Errorf("unknown secret = %v, want not_found", res)
	}
}

func TestInviteNonConsumingCheck(t *testing.T) {
	h, _ := newTestHistory(0)
	iv := h.CreateInvite("op", 2, true, false)

	res, got := h.CheckInvite("A", "alice", iv.Secret, false)
	if res != history.InviteOk {
		t.Fatalf("non-consuming check = %v, want ok", res)
	}
	if !got.Trust || got.Op {
		t.Error("returned invite should carry its grant flags")
	}
	if len(iv.Uses) != 0 {
		t.Error("non-consuming check must not record a use")
	}
}

func TestInviteTableCapAndEviction(t *testing.T) {
	h, _ := newTestHistory(0)
	for i := 0; i < domain.MaxInvites; i++ {
		if h.CreateInvite("op", 1, false, false) == nil {
			t.Fatalf("invite %d rejected below the cap", i)
		}
	}
	if h.CreateInvite("op", 1, false, false) != nil {
		t.Fatal("invite over the cap should be rejected")
	}

	secret, ok := h.RemoveOldestInvite()
	if !ok || secret == "" {
		t.Fatal("eviction from a full table should succeed")
	}
	if h.CreateInvite("op", 1, false, false) == nil {
		t.Error("creation should succeed after eviction")
	}
}

func TestInviteMaxUsesClamped(t *testing.T) {
	h, _ := newTestHistory(0)
	iv := h.CreateInvite("op", 99999, false, false)
	if iv.MaxUses != domain.MaxInviteUses {
		t.Errorf("MaxUses = %d, want clamped to %d", iv.MaxUses, domain.MaxInviteUses)
	}
	iv = h.CreateInvite("op", -3, false, false)
	if iv.MaxUses != 1 {
		t.Errorf("MaxUses = %d, want clamped to 1", iv.MaxUses)
	}
}

func TestThumbnailScenario(t *testing.T) {
	h, _ := newTestHistory(0)

	if _, res := h.StartThumbnailGeneration(0); res != history.ThumbnailStartInvalidUser {
		t.Errorf("start from context 0 = %v, want invalid_user", res)
	}

	correlator, res := h.StartThumbnailGeneration(5)
	if res != history.ThumbnailStartOk {
		t.Fatalf("StartThumbnailGeneration() = %v", res)
	}
	if !strings.Contains(correlator, ":") {
		t.Errorf("correlator %q missing counter:timestamp shape", correlator)
	}
	if _, res := h.StartThumbnailGeneration(5); res != history.ThumbnailStartAlreadyGenerating {
		t.Errorf("duplicate start = %v, want already_generating", res)
	}

	if res := h.FinishThumbnailGeneration(9, []byte(correlator+"PNGDATA")); res != history.ThumbnailFinishInvalidUser {
		t.Errorf("finish from wrong context = %v, want invalid_user", res)
	}
	if res := h.FinishThumbnailGeneration(5, append([]byte(correlator), "PNGDATA"...)); res != history.ThumbnailFinishOk {
		t.Fatalf("FinishThumbnailGeneration() = %v", res)
	}
	data, _, ok := h.Thumbnail()
	if !ok || string(data) != "PNGDATA" {
		t.Errorf("stored thumbnail = %q, want PNGDATA", data)
	}

	// A fresh generation with a stale payload must not clobber the
	// stored thumbnail.
	correlator2, _ := h.StartThumbnailGeneration(5)
	if res := h.FinishThumbnailGeneration(5, []byte("wrong-prefix")); res != history.ThumbnailFinishInvalidCorrelator {
		t.Errorf("mismatched payload = %v, want invalid_correlator", res)
	}
	if data, _, _ := h.Thumbnail(); string(data) != "PNGDATA" {
		t.Error("failed finish must not alter the stored thumbnail")
	}

	if res := h.FinishThumbnailGeneration(5, []byte(correlator2)); res != history.ThumbnailFinishNoData {
		t.Errorf("correlator-only payload = %v, want no_data", res)
	}
	if h.DescribeThumbnail().GeneratorCorrelator != "" {
		t.Error("request must clear once the correlator matched, even on no_data")
	}
}

func TestThumbnailCancel(t *testing.T) {
	h, _ := newTestHistory(0)
	correlator, _ := h.StartThumbnailGeneration(5)

	if h.CancelThumbnailGeneration(9, "bogus") {
		t.Error("cancel with mismatched context and correlator should fail")
	}
	if !h.CancelThumbnailGeneration(0, correlator) {
		t.Error("cancel by correlator should succeed")
	}
	if _, res := h.StartThumbnailGeneration(5); res != history.ThumbnailStartOk {
		t.Errorf("start after cancel = %v, want ok", res)
	}
}

func TestGetBatchPaginates(t *testing.T) {
	h, _ := newTestHistory(0)
	for i := 0; i < 150; i++ {
		h.AddMessage(cmdOfLength(1, 20))
	}

	var replayed int64
	after := int64(-1)
	for after < h.LastIndex() {
		msgs, last, err := h.GetBatch(after)
		if err != nil {
			t.Fatalf("GetBatch(%d): %v", after, err)
		}
		if len(msgs) == 0 {
			t.Fatalf("empty batch at %d before reaching the end", after)
		}
		replayed += int64(len(msgs))
		after = last
	}
	if replayed != 150 {
		t.Errorf("replayed %d messages, want 150", replayed)
	}
}
