package domain

// BanEntry is one entry in a session's ban list. Entries live with the
// session; persisting them across restarts is the embedder's concern.
type BanEntry struct {
	// ID identifies the entry within its session's list.
	ID int `json:"id"`

	// Username is the display name the client was banned under.
	Username string `json:"username"`

	// AuthID is the client's external auth identity, if any.
	AuthID string `json:"auth_id,omitempty"`

	// ClientKey is the client's connection fingerprint, if known.
	ClientKey string `json:"client_key,omitempty"`

	// BannedBy is the display name of the operator who placed the ban.
	BannedBy string `json:"banned_by"`

	// At is the ban timestamp in RFC 3339 form.
	At string `json:"at"`
}

// Matches reports whether a client identified by authID or clientKey is
// covered by this entry. An empty identity never matches.
func (b *BanEntry) Matches(authID, clientKey string) bool {
	if authID != "" && b.AuthID == authID {
		return true
	}
	if clientKey != "" && b.ClientKey == clientKey {
		return true
	}
	return false
}
