package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a user's authenticated session.
// The session ID is stored in an opaque signed cookie, while all session data
// lives server-side. Sessions are tenant-scoped like users; looking one up
// from a bare cookie therefore requires the system capability, since the
// organization is not known until the session row has been read.
type Session struct {
	SessionID uuid.UUID // UUIDv7 - the only value stored in the cookie
	OrgID     uuid.UUID // Denormalized so the tenant context can be restored
	UserID    uuid.UUID // Who is logged in

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
