package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated actor behind a request. It is resolved once
// at login time (role plus the single matching profile row) and carried in
// the Redis session, so handlers never re-derive identity from profile
// existence checks.
type Principal struct {
	UserID         uuid.UUID  `json:"user_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	AdminID        *uuid.UUID `json:"admin_id,omitempty"`
	AgentID        *uuid.UUID `json:"agent_id,omitempty"`
	CustomerID     *uuid.UUID `json:"customer_id,omitempty"`
}

// IsAdmin reports whether the principal administers its organization.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin && p.AdminID != nil
}

// IsAgent reports whether the principal is a sales agent.
func (p *Principal) IsAgent() bool {
	return p.Role == RoleAgent && p.AgentID != nil
}

// IsCustomer reports whether the principal is a customer.
func (p *Principal) IsCustomer() bool {
	return p.Role == RoleCustomer && p.CustomerID != nil
}

// TokenSession is the Redis-backed session for an issued token.
type TokenSession struct {
	Principal  Principal `json:"principal"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	SessionID  string    `json:"session_id"`
}

// IsExpired reports whether the session has passed its expiry.
func (ts *TokenSession) IsExpired() bool {
	return time.Now().After(ts.ExpiresAt)
}

// UpdateLastUsed stamps the session with the current time.
func (ts *TokenSession) UpdateLastUsed() {
	ts.LastUsedAt = time.Now()
}
