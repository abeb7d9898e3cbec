package domain

// Invite constraints.
const (
	// MaxInvites caps the number of invites a session may hold at once.
	MaxInvites = 64

	// MaxInviteUses caps how many distinct clients may use one invite.
	MaxInviteUses = 100
)

// InviteUse records one client's use of an invite.
type InviteUse struct {
	// Name is the display name the client identified with.
	Name string `json:"name"`

	// At is the use timestamp in RFC 3339 form.
	At string `json:"at"`
}

// Describe returns the JSON-shaped description of this use. The client
// key is only included when a full (operator-level) description is
// requested; it is omitted from what regular participants see.
func (u *InviteUse) Describe(clientKey string) map[string]any {
	out := map[string]any{
		"name": u.Name,
		"at":   u.At,
	}
	if clientKey != "" {
		out["s"] = clientKey
	}
	return out
}

// Invite is a session invitation token with bounded uses.
type Invite struct {
	// Secret is the invite token handed to prospective participants.
	Secret string `json:"secret"`

	// Creator is the display name of whoever minted the invite.
	Creator string `json:"creator,omitempty"`

	// At is the creation timestamp in RFC 3339 form. Oldest-first
	// eviction orders invites lexicographically by this field.
	At string `json:"at"`

	// MaxUses bounds the number of distinct clients, clamped to
	// [1, MaxInviteUses] at creation.
	MaxUses int `json:"maxUses"`

	// Trust grants the trusted tier to clients joining with this invite.
	Trust bool `json:"trust,omitempty"`

	// Op grants operator status to clients joining with this invite.
	Op bool `json:"op,omitempty"`

	// Uses maps client key to that client's use record.
	Uses map[string]*InviteUse `json:"-"`
}

// HasUsesRemaining reports whether a new client may still use the invite.
func (iv *Invite) HasUsesRemaining() bool {
	return len(iv.Uses) < iv.MaxUses
}

// Describe returns the JSON-shaped description of the invite. When full
// is set, use records include the client keys.
func (iv *Invite) Describe(full bool) map[string]any {
	uses := make([]map[string]any, 0, len(iv.Uses))
	for clientKey, use := range iv.Uses {
		if full {
			uses = append(uses, use.Describe(clientKey))
		} else {
			uses = append(uses, use.Describe(""))
		}
	}

	out := map[string]any{
		"secret":  iv.Secret,
		"at":      iv.At,
		"maxUses": iv.MaxUses,
		"uses":    uses,
	}
	if iv.Creator != "" {
		out["creator"] = iv.Creator
	}
	if iv.Op {
		out["op"] = iv.Op
	}
	if iv.Trust {
		out["trust"] = iv.Trust
	}
	return out
}
