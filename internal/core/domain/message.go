package domain

// Kind is the coarse classification of a history message.
//
// The history core never inspects message payloads; the kind tag is the
// only part of a message that influences log bookkeeping.
type Kind uint8

const (
	// KindCommand is an ordinary drawing command replayed to joining clients.
	KindCommand Kind = iota

	// KindControl is a session control message (soft reset and friends).
	// Control messages are never accepted inside a reset stream.
	KindControl

	// KindServerMeta is a server-generated metadata message such as the
	// stream-start marker or a catch-up notice.
	KindServerMeta

	// KindChat is a chat line. Chat is the one server-meta subtype that
	// survives compaction, so it carries its own tag.
	KindChat

	// KindResetStream is a chunk of a streamed compaction payload. The
	// chunk payload is consumed by the stream reassembly consumer and
	// never enters the log directly.
	KindResetStream
)

// String returns the kind name used in logs and status output.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindControl:
		return "control"
	case KindServerMeta:
		return "servermeta"
	case KindChat:
		return "chat"
	case KindResetStream:
		return "resetstream"
	default:
		return "unknown"
	}
}

// Message is one entry of a session history log.
//
// Messages are immutable once appended to a log. The payload is opaque
// to the history core; only its framed length is accounted against the
// session's byte budget.
type Message struct {
	kind      Kind
	contextID uint8
	payload   []byte
}

// NewMessage creates a message with the given kind, author context and payload.
// The payload is not copied; callers must not mutate it after handing it over.
func NewMessage(kind Kind, contextID uint8, payload []byte) Message {
	return Message{kind: kind, contextID: contextID, payload: payload}
}

// Kind returns the message kind tag.
func (m Message) Kind() Kind { return m.kind }

// ContextID returns the author context identifier.
func (m Message) ContextID() uint8 { return m.contextID }

// Payload returns the opaque payload bytes.
func (m Message) Payload() []byte { return m.payload }

// WithContextID returns a copy of the message attributed to a different
// author context. The payload is shared, not copied.
func (m Message) WithContextID(contextID uint8) Message {
	m.contextID = contextID
	return m
}

// Length returns the framed wire length of the message in bytes. This is
// the quantity counted against history size limits, so in-memory and
// persistent accounting agree.
func (m Message) Length() int64 {
	return int64(frameOverhead + len(m.payload))
}

// IsControl reports whether the message is a session control message.
func (m Message) IsControl() bool { return m.kind == KindControl }

// IsServerMeta reports whether the message is server-generated metadata.
// Chat does not count as server metadata here.
func (m Message) IsServerMeta() bool { return m.kind == KindServerMeta }
