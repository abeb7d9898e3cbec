package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func newBufferedLogger(t *testing.T, buf *bytes.Buffer) Logger {
	t.Helper()
	l, err := New(Config{Level: "info", Format: "json", Output: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

func TestRedactInviteSecret(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(t, &buf)

	secret := "q3kf8a2m7xnp"
	l.Info("invite created", "invite_secret", secret)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log JSON: %v", err)
	}
	got, _ := entry["invite_secret"].(string)
	if got == secret {
		t.Errorf("invite secret logged in the clear: %s", got)
	}
	if got != "q3k..." {
		t.Errorf("mask format = %q, want %q", got, "q3k...")
	}
}

func TestRedactCorrelator(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(t, &buf)

	l.Info("thumbnail requested", "correlator", "1a:18f2c9e4b20")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log JSON: %v", err)
	}
	if got, _ := entry["correlator"].(string); got == "1a:18f2c9e4b20" {
		t.Error("correlator logged in the clear")
	}
}

func TestShortValuesFullyRedacted(t *testing.T) {
	if got := MaskValue("abc"); got != redactedValue {
		t.Errorf("MaskValue(short) = %q, want full redaction", got)
	}
	if got := MaskValue("abcdefgh"); got != "abc..." {
		t.Errorf("MaskValue() = %q, want %q", got, "abc...")
	}
}

func TestNonSensitiveFieldsUntouched(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(t, &buf)

	l.Info("session opened", "session_id", "dhss-01J0ABCDEF", "worker", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log JSON: %v", err)
	}
	if got, _ := entry["session_id"].(string); got != "dhss-01J0ABCDEF" {
		t.Errorf("session_id was altered: %q", got)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"invite_secret", true},
		{"Authorization", true},
		{"generator_correlator", true},
		{"encryption_key", true},
		{"session_id", false},
		{"size_bytes", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRedactWithDerivedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(t, &buf)

	l.With("request", "r-1").Info("invite checked", "secret", "m4nd92kfp3qa")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log JSON: %v", err)
	}
	if got, _ := entry["secret"].(string); got == "m4nd92kfp3qa" {
		t.Error("secret in derived logger logged in the clear")
	}
}
