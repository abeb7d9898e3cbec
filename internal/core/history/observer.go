package history

// Observer receives history lifecycle events. The telemetry layer
// implements this with Prometheus counters; histories created without
// one get a no-op. The session registry fires the session hooks; the
// rest come from the history itself.
type Observer interface {
	SessionOpened()
	SessionClosed()
	MessageAppended(bytes int64)
	MessageRejected()
	ResetApplied(sizeInBytes int64)
	StreamResetStarted()
	StreamResetResolved(sizeInBytes int64)
	StreamResetAborted()
	InviteCreated()
	ThumbnailRequested()
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) SessionOpened() {}
func (NopObserver) SessionClosed() {}
func (NopObserver) MessageAppended(int64) {}
func (NopObserver) MessageRejected() {}
func (NopObserver) ResetApplied(int64) {}
func (NopObserver) StreamResetStarted() {}
func (NopObserver) StreamResetResolved(int64) {}
func (NopObserver) StreamResetAborted() {}
func (NopObserver) InviteCreated() {}
func (NopObserver) ThumbnailRequested() {}
