package model

import (
	"time"
)

// Session is a pairing rendezvous identified by a short numeric code.
// Rows are never updated; a session is gone once ExpiresAt has passed.
type Session struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// IsExpired matches the store's `expires_at > NOW()` liveness filter.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
