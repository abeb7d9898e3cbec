package domain

// HistoryIndex identifies a position in a session's history log.
//
// Epoch is the session's last full-reset timestamp in Unix milliseconds;
// positions are only comparable between indices that share the same
// epoch. Clients cache their last index and present it on reconnect to
// resume from where they left off instead of re-downloading the log.
type HistoryIndex struct {
	SessionID string `json:"session_id"`
	Epoch     int64  `json:"epoch"`
	Position  int64  `json:"position"`
}

// NewHistoryIndex creates a history index.
func NewHistoryIndex(sessionID string, epoch, position int64) HistoryIndex {
	return HistoryIndex{SessionID: sessionID, Epoch: epoch, Position: position}
}

// IsValid reports whether the index carries a usable identity. A zero
// value (e.g. from a client that never joined) is not valid.
func (hi HistoryIndex) IsValid() bool {
	return hi.SessionID != "" && hi.Epoch > 0 && hi.Position >= 0
}
