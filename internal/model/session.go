package model

import "time"

// SessionUser is the identity carried by a Session.
type SessionUser struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Session identifies the authenticated user for a single request.
// It is never cached or mutated once resolved.
type Session struct {
	User SessionUser `json:"user"`
	Mock bool        `json:"-"`
}

// Mock user returned in demo mode.
const (
	MockUserID    = "mock-user-id"
	MockUserPhone = "+919876543210"
	MockUserEmail = "demo@sharetaxi.in"
)

// NewMockSession returns the fixed demo-mode session.
func NewMockSession() *Session {
	return &Session{
		User: SessionUser{
			ID:    MockUserID,
			Phone: MockUserPhone,
			Email: MockUserEmail,
		},
		Mock: true,
	}
}

// SessionFromUser translates a provider user record into a Session.
func SessionFromUser(u *User) *Session {
	return &Session{
		User: SessionUser{
			ID:    u.ID,
			Phone: u.Phone,
			Email: u.Email,
		},
	}
}

// AuthSession is a login session issued by the local auth provider.
// Only the argon2id hash of the token is stored.
type AuthSession struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenPrefix string     `json:"token_prefix"`
	TokenHash   string     `json:"-"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsActive reports whether the session is neither revoked nor expired at now.
func (s *AuthSession) IsActive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// LoginResult is returned by a successful OTP verification.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}
