package history

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"
)

// thumbnailCounter disambiguates correlators minted within the same
// millisecond, process-wide.
var thumbnailCounter atomic.Uint32

// StartThumbnailGeneration asks the client with the given context ID to
// render a session thumbnail. The returned correlator must prefix the
// delivered image so a stale generation can be told apart from the
// current one. A second request to the same client while its generation
// is outstanding is rejected; a request to a different client supersedes
// the outstanding one.
func (h *History) StartThumbnailGeneration(contextID uint8) (string, ThumbnailStartResult) {
	if contextID == 0 {
		return "", ThumbnailStartInvalidUser
	}
	if contextID == h.thumbCtxID {
		return "", ThumbnailStartAlreadyGenerating
	}

	h.thumbCtxID = contextID
	h.thumbCorrelator = fmt.Sprintf("%x:%x",
		thumbnailCounter.Add(1)-1, time.Now().UnixMilli())
	h.obs.ThumbnailRequested()
	return h.thumbCorrelator, ThumbnailStartOk
}

// FinishThumbnailGeneration accepts a generated thumbnail from the
// client it was requested from. The payload must start with the
// correlator handed out at start time; the image follows it.
func (h *History) FinishThumbnailGeneration(contextID uint8, data []byte) ThumbnailFinishResult {
	if h.thumbCtxID != contextID {
		return ThumbnailFinishInvalidUser
	}

	correlator := []byte(h.thumbCorrelator)
	if !bytes.HasPrefix(data, correlator) {
		return ThumbnailFinishInvalidCorrelator
	}

	h.thumbCtxID = 0
	h.thumbCorrelator = ""

	image := data[len(correlator):]
	if len(image) == 0 {
		return ThumbnailFinishNoData
	}
	if err := h.backend.SetThumbnail(image); err != nil {
		h.log.Error("storing thumbnail failed", "error", err)
		return ThumbnailFinishWriteError
	}
	return ThumbnailFinishOk
}

// CancelThumbnailGeneration clears the outstanding generation request if
// contextID and correlator match it; zero values match anything. Used
// when the generating client disconnects or declines.
func (h *History) CancelThumbnailGeneration(contextID uint8, correlator string) bool {
	if (contextID == 0 || contextID == h.thumbCtxID) &&
		(correlator == "" || correlator == h.thumbCorrelator) {
		h.thumbCtxID = 0
		h.thumbCorrelator = ""
		return true
	}
	return false
}

// Thumbnail returns the stored session thumbnail.
func (h *History) Thumbnail() ([]byte, time.Time, bool) {
	return h.backend.Thumbnail()
}

// PurgeThumbnail deletes the stored thumbnail.
func (h *History) PurgeThumbnail() {
	if err := h.backend.SetThumbnail(nil); err != nil {
		h.log.Error("purging thumbnail failed", "error", err)
	}
}

// ThumbnailStatus is the introspection snapshot of thumbnail state.
type ThumbnailStatus struct {
	GeneratedAt         string `json:"generated_at,omitempty"`
	GeneratorContext    uint8  `json:"generator_context,omitempty"`
	GeneratorCorrelator string `json:"generator_correlator,omitempty"`
}

// DescribeThumbnail returns the thumbnail snapshot, or nil when there is
// neither a stored thumbnail nor an outstanding generation request.
func (h *History) DescribeThumbnail() *ThumbnailStatus {
	var st ThumbnailStatus
	if _, at, ok := h.backend.Thumbnail(); ok {
		st.GeneratedAt = at.UTC().Format(time.RFC3339)
	}
	if h.thumbCtxID != 0 || h.thumbCorrelator != "" {
		st.GeneratorContext = h.thumbCtxID
		st.GeneratorCorrelator = h.thumbCorrelator
	}
	if st == (ThumbnailStatus{}) {
		return nil
	}
	return &st
}
