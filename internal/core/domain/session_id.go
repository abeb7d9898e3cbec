package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix is the prefix for session IDs.
// Format: dhss-{ulid_lowercase}, 31 characters total.
const SessionIDPrefix = "dhss-"

// GenerateSessionID generates a new session ID using ULID.
func GenerateSessionID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return SessionIDPrefix + strings.ToLower(id.String())
}

// IsValidSessionID checks if a string is a valid session ID format.
// The ID is normalized to lowercase before validation.
func IsValidSessionID(id string) bool {
	id = strings.ToLower(id)

	if !strings.HasPrefix(id, SessionIDPrefix) {
		return false
	}

	// dhss- (5) + ULID (26) = 31 characters
	if len(id) != 31 {
		return false
	}

	ulidPart := strings.ToUpper(id[len(SessionIDPrefix):])
	_, err := ulid.Parse(ulidPart)
	return err == nil
}
