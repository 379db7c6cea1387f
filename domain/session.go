package domain

import "time"

// Session is the client-side session window owned by the access gate.
type Session struct {
	ID           string    `json:"id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// TimeUntilExpiry returns the remaining session time, floored at zero.
func (s *Session) TimeUntilExpiry(reference time.Time) time.Duration {
	if s.IsExpired(reference) {
		return 0
	}
	return s.ExpiresAt.Sub(reference)
}

// Credentials is everything persisted on the device for a signed-in user.
// The four fields are written and cleared together.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         *User     `json:"user,omitempty"`
	LastActivity time.Time `json:"last_activity"`
}

// TokenPair is returned by the token refresh collaborator.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
