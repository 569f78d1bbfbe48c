package models

import (
	"time"

	"github.com/google/uuid"
)

// APIToken identifies a lookup caller. Raw tokens are shown once at issue time;
// only the prefix and the bcrypt hash are stored.
type APIToken struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	AccountID   *uuid.UUID `db:"account_id"   json:"account_id,omitempty"`
	Name        string     `db:"name"         json:"name"`
	TokenHash   string     `db:"token_hash"   json:"-"`
	TokenPrefix string     `db:"token_prefix" json:"token_prefix"`
	Active      bool       `db:"active"       json:"active"`
	ExpiresAt   *time.Time `db:"expires_at"   json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// Usable reports whether the token may authorize a request at the given instant.
// An expired token is unusable even when still flagged active.
func (t *APIToken) Usable(now time.Time) bool {
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return t.Active
}
