package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestMessageLength(t *testing.T) {
	msg := MakeCommand(3, []byte("stroke"))

	frame := EncodeFrame(msg)
	if got := msg.Length(); got != int64(len(frame)) {
		t.Errorf("Length() = %d, want framed size %d", got, len(frame))
	}
}

func TestEncodeDecodeFrame(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"command", MakeCommand(1, []byte{0xde, 0xad, 0xbe, 0xef})},
		{"chat", MakeChat(7, "hello")},
		{"empty payload", MakeSoftReset(0)},
		{"servermeta", MakeCaughtUp(0, 42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := EncodeFrame(tt.msg)

			bodyLen, ok := FrameLength(frame)
			if !ok {
				t.Fatal("FrameLength() could not read length prefix")
			}
			if bodyLen != len(frame)-FrameHeaderSize() {
				t.Fatalf("frame length prefix = %d, want %d", bodyLen, len(frame)-FrameHeaderSize())
			}

			got, err := DecodeFrameBody(frame[FrameHeaderSize():])
			if err != nil {
				t.Fatalf("DecodeFrameBody() error = %v", err)
			}
			if got.Kind() != tt.msg.Kind() {
				t.Errorf("Kind = %v, want %v", got.Kind(), tt.msg.Kind())
			}
			if got.ContextID() != tt.msg.ContextID() {
				t.Errorf("ContextID = %d, want %d", got.ContextID(), tt.msg.ContextID())
			}
			if !bytes.Equal(got.Payload(), tt.msg.Payload()) {
				t.Errorf("Payload = %q, want %q", got.Payload(), tt.msg.Payload())
			}
		})
	}
}

func TestDecodeFrameBodyRejectsCorruption(t *testing.T) {
	frame := EncodeFrame(MakeCommand(1, []byte("abcdef")))
	body := frame[FrameHeaderSize():]

	// Flip a payload byte; the CRC must catch it.
	mangled := append([]byte(nil), body...)
	mangled[len(mangled)-1] ^= 0xff
	if _, err := DecodeFrameBody(mangled); !errors.Is(err, ErrFrameChecksum) {
		t.Errorf("mangled payload: error = %v, want ErrFrameChecksum", err)
	}

	// Truncated body.
	if _, err := DecodeFrameBody(body[:3]); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("short body: error = %v, want ErrCorruptFrame", err)
	}
}

func TestWithContextID(t *testing.T) {
	msg := MakeCommand(4, []byte("x"))
	moved := msg.WithContextID(9)

	if moved.ContextID() != 9 {
		t.Errorf("ContextID = %d, want 9", moved.ContextID())
	}
	if msg.ContextID() != 4 {
		t.Error("WithContextID must not mutate the original")
	}
}

func TestControlPayloadShapes(t *testing.T) {
	var start struct {
		Type       string `json:"type"`
		Correlator string `json:"correlator"`
	}
	if err := json.Unmarshal(MakeStreamResetStart(5, "a:b").Payload(), &start); err != nil {
		t.Fatalf("unmarshal sstart: %v", err)
	}
	if start.Type != "sstart" || start.Correlator != "a:b" {
		t.Errorf("sstart payload = %+v", start)
	}

	var caught struct {
		Type string `json:"type"`
		Key  int    `json:"key"`
	}
	if err := json.Unmarshal(MakeCaughtUp(0, 17).Payload(), &caught); err != nil {
		t.Fatalf("unmarshal caughtup: %v", err)
	}
	if caught.Type != "caughtup" || caught.Key != 17 {
		t.Errorf("caughtup payload = %+v", caught)
	}

	// A keyless catch-up omits the key field entirely.
	raw := map[string]any{}
	if err := json.Unmarshal(MakeCatchup(0, 25, -1).Payload(), &raw); err != nil {
		t.Fatalf("unmarshal catchup: %v", err)
	}
	if _, present := raw["key"]; present {
		t.Error("catchup with negative key must omit the key field")
	}
	if raw["count"] != float64(25) {
		t.Errorf("catchup count = %v, want 25", raw["count"])
	}
}

func TestSoftResetHasNoPayload(t *testing.T) {
	msg := MakeSoftReset(0)
	if msg.Kind() != KindControl {
		t.Errorf("Kind = %v, want KindControl", msg.Kind())
	}
	if len(msg.Payload()) != 0 {
		t.Errorf("soft reset payload = %q, want empty", msg.Payload())
	}
}

func TestGenerateSessionID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateSessionID()
		if !IsValidSessionID(id) {
			t.Errorf("generated ID is not valid: %q", id)
		}
		if ids[id] {
			t.Errorf("duplicate ID generated: %q", id)
		}
		ids[id] = true
	}
}

func TestIsValidSessionID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"valid ID", "dhss-01hqv5xw9jk3m8p2rtyza4bcde", true},
		{"wrong prefix", "dhs-01hqv5xw9jk3m8p2rtyza4bcde", false},
		{"no prefix", "01hqv5xw9jk3m8p2rtyza4bcde", false},
		{"too short", "dhss-01hqv123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSessionID(tt.id); got != tt.valid {
				t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}
