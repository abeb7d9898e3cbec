package history

import (
	"sort"
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
)

// AddBan places a ban on the client identified by authID and/or
// clientKey. A client already covered by an existing entry is not
// banned twice; the existing entry is returned with added=false.
func (h *History) AddBan(username, authID, clientKey, bannedBy string) (*domain.BanEntry, bool) {
	for _, b := range h.bans {
		if b.Matches(authID, clientKey) {
			return b, false
		}
	}

	h.nextBanID++
	entry := &domain.BanEntry{
		ID:        h.nextBanID,
		Username:  username,
		AuthID:    authID,
		ClientKey: clientKey,
		BannedBy:  bannedBy,
		At:        time.Now().UTC().Format(time.RFC3339),
	}
	h.bans[entry.ID] = entry

	h.log.Info("client banned",
		"ban_id", entry.ID,
		"username", username,
		"banned_by", bannedBy)
	return entry, true
}

// RemoveBan lifts the ban with the given ID, reporting whether it
// existed.
func (h *History) RemoveBan(id int) bool {
	entry, ok := h.bans[id]
	if !ok {
		return false
	}
	delete(h.bans, id)

	h.log.Info("ban lifted", "ban_id", id, "username", entry.Username)
	return true
}

// IsBanned reports whether a client identified by authID or clientKey
// is covered by any ban entry.
func (h *History) IsBanned(authID, clientKey string) bool {
	for _, b := range h.bans {
		if b.Matches(authID, clientKey) {
			return true
		}
	}
	return false
}

// Bans returns the ban list ordered by entry ID.
func (h *History) Bans() []*domain.BanEntry {
	out := make([]*domain.BanEntry, 0, len(h.bans))
	for _, b := range h.bans {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
