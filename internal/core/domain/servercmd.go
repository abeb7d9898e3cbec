package domain

import "encoding/json"

// Control-plane payload shapes. These field names are part of the
// contract with the client: the session layer serializes them verbatim.
type streamStartPayload struct {
	Type       string `json:"type"`
	Correlator string `json:"correlator"`
}

type streamProgressPayload struct {
	Type   string `json:"type"`
	Cancel bool   `json:"cancel"`
}

type catchupPayload struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Key   *int   `json:"key,omitempty"`
}

type caughtUpPayload struct {
	Type string `json:"type"`
	Key  int    `json:"key"`
}

type chatPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MakeSoftReset builds the soft-reset marker inserted at the head of a
// streamed reset. It carries no payload beyond kind and author.
func MakeSoftReset(contextID uint8) Message {
	return Message{kind: KindControl, contextID: contextID}
}

// MakeStreamResetStart builds the stream-start marker announcing that
// the given context is about to stream a compacted snapshot, tagged with
// the correlator the server handed out.
func MakeStreamResetStart(contextID uint8, correlator string) Message {
	return makeServerMeta(contextID, streamStartPayload{
		Type:       "sstart",
		Correlator: correlator,
	})
}

// MakeStreamResetProgress builds the stream-progress marker. A cancel of
// true tells the streaming client to stop sending chunks.
func MakeStreamResetProgress(contextID uint8, cancel bool) Message {
	return makeServerMeta(contextID, streamProgressPayload{
		Type:   "sprogress",
		Cancel: cancel,
	})
}

// MakeCatchup builds a catch-up request covering count messages. A
// negative key omits the key field, matching clients that predate keyed
// catch-up acknowledgements.
func MakeCatchup(contextID uint8, count, key int) Message {
	p := catchupPayload{Type: "catchup", Count: count}
	if key >= 0 {
		p.Key = &key
	}
	return makeServerMeta(contextID, p)
}

// MakeCaughtUp builds the catch-up acknowledgement for the given key.
func MakeCaughtUp(contextID uint8, key int) Message {
	return makeServerMeta(contextID, caughtUpPayload{Type: "caughtup", Key: key})
}

// MakeChat builds a chat message. Chat is the only server-adjacent kind
// allowed inside a reset stream.
func MakeChat(contextID uint8, text string) Message {
	payload, _ := json.Marshal(chatPayload{Type: "chat", Message: text})
	return Message{kind: KindChat, contextID: contextID, payload: payload}
}

// MakeCommand wraps an opaque drawing command payload.
func MakeCommand(contextID uint8, payload []byte) Message {
	return Message{kind: KindCommand, contextID: contextID, payload: payload}
}

// MakeResetStreamChunk wraps a chunk of a streamed compaction payload.
func MakeResetStreamChunk(contextID uint8, chunk []byte) Message {
	return Message{kind: KindResetStream, contextID: contextID, payload: chunk}
}

func makeServerMeta(contextID uint8, v any) Message {
	// Marshalling these fixed shapes cannot fail.
	payload, _ := json.Marshal(v)
	return Message{kind: KindServerMeta, contextID: contextID, payload: payload}
}
