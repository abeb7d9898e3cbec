package history

import (
	"time"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/pkg/shortid"
)

// CreateInvite mints a new invite with a fresh secret. It returns nil
// when the session already holds the maximum number of invites; the
// caller may evict with RemoveOldestInvite and retry.
func (h *History) CreateInvite(createdBy string, maxUses int, trust, op bool) *domain.Invite {
	if len(h.invites) >= domain.MaxInvites {
		return nil
	}
	iv := h.SetInvite(h.generateInviteSecret(), createdBy,
		time.Now().UTC().Format(time.RFC3339), maxUses, trust, op)
	h.obs.InviteCreated()
	return iv
}

// SetInvite installs or overwrites the invite stored under secret.
// Overwriting clears the use records. maxUses is clamped to the valid
// range. Used directly when restoring persisted invites.
func (h *History) SetInvite(secret, createdBy, at string, maxUses int, trust, op bool) *domain.Invite {
	if maxUses < 1 {
		maxUses = 1
	} else if maxUses > domain.MaxInviteUses {
		maxUses = domain.MaxInviteUses
	}
	iv := &domain.Invite{
		Secret:  secret,
		Creator: createdBy,
		At:      at,
		MaxUses: maxUses,
		Trust:   trust,
		Op:      op,
		Uses:    make(map[string]*domain.InviteUse),
	}
	h.invites[secret] = iv
	return iv
}

// RemoveInvite deletes the invite stored under secret, reporting whether
// it existed. Clients already admitted through it are unaffected.
func (h *History) RemoveInvite(secret string) bool {
	if _, ok := h.invites[secret]; !ok {
		return false
	}
	delete(h.invites, secret)
	return true
}

// RemoveOldestInvite evicts the invite with the lexicographically
// smallest creation timestamp and returns its secret.
func (h *History) RemoveOldestInvite() (string, bool) {
	var oldestSecret, oldestAt string
	for secret, iv := range h.invites {
		if oldestSecret == "" || iv.At < oldestAt {
			oldestSecret = secret
			oldestAt = iv.At
		}
	}
	if oldestSecret == "" {
		return "", false
	}
	delete(h.invites, oldestSecret)
	return oldestSecret, true
}

// Invite returns the invite stored under secret, if any.
func (h *History) Invite(secret string) (*domain.Invite, bool) {
	iv, ok := h.invites[secret]
	return iv, ok
}

// InviteCount returns the number of stored invites.
func (h *History) InviteCount() int { return len(h.invites) }

// CheckInvite checks, and when use is set consumes, the invite stored
// under secret on behalf of the client identified by clientKey and
// display name. A client that already used the invite gets readmitted
// without consuming another use; if it comes back under a different
// name, the recorded name is updated. The returned invite is non-nil
// whenever the secret resolved, regardless of the outcome.
func (h *History) CheckInvite(clientKey, name, secret string, use bool) (CheckInviteResult, *domain.Invite) {
	if clientKey == "" {
		return InviteNoClientKey, nil
	}
	if secret == "" {
		return InviteNotFound, nil
	}
	iv, ok := h.invites[secret]
	if !ok {
		return InviteNotFound, nil
	}

	if u, used := iv.Uses[clientKey]; used {
		if !use || u.Name == name {
			return InviteAlreadyInvited, iv
		}
		u.Name = name
		return InviteAlreadyInvitedNameChanged, iv
	}

	if !iv.HasUsesRemaining() {
		return InviteMaxUsesReached, iv
	}
	if !use {
		return InviteOk, iv
	}
	iv.Uses[clientKey] = &domain.InviteUse{
		Name: name,
		At:   time.Now().UTC().Format(time.RFC3339),
	}
	return InviteUsed, iv
}

// DescribeInvites returns the JSON-shaped invite list. Client keys are
// only included when full is set.
func (h *History) DescribeInvites(full bool) []map[string]any {
	out := make([]map[string]any, 0, len(h.invites))
	for _, iv := range h.invites {
		out = append(out, iv.Describe(full))
	}
	return out
}

func (h *History) generateInviteSecret() string {
	for {
		secret := shortid.New()
		if _, taken := h.invites[secret]; !taken {
			return secret
		}
	}
}
