package domain

import "time"

// Presence is the last-write-wins presence record of one user.
// Only the owning identity may write it.
type Presence struct {
	UserID       UserID
	Handle       string
	IsTyping     bool
	TypingTarget UserID
	LastActive   time.Time
	// UpdatedAt is strictly increasing per user and doubles as a revision.
	UpdatedAt time.Time
}

// IsTypingTo reports whether the user is typing to the given participant.
func (p Presence) IsTypingTo(id UserID) bool {
	return p.IsTyping && p.TypingTarget == id
}

// PresencePatch carries a partial update. Nil fields are preserved on merge.
type PresencePatch struct {
	Handle       *string
	IsTyping     *bool
	TypingTarget *UserID
}

// Apply merges the patch into the record and stamps it with at.
func (p Presence) Apply(patch PresencePatch, at time.Time) Presence {
	if patch.Handle != nil {
		p.Handle = *patch.Handle
	}
	if patch.IsTyping != nil {
		p.IsTyping = *patch.IsTyping
	}
	if patch.TypingTarget != nil {
		p.TypingTarget = *patch.TypingTarget
	}
	p.LastActive = at
	p.UpdatedAt = at
	return p
}
