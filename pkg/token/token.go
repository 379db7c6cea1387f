// Package token inspects access tokens on the client side.
//
// Signatures are not verified here; issuance and verification belong to the
// auth service. The functions only answer "is this token usable right now"
// and "is it due for renewal", treating anything malformed as absent.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/storefront-guard/domain"
)

// DefaultRefreshThreshold is how long before expiry a token becomes due for renewal.
const DefaultRefreshThreshold = 5 * time.Minute

// Claims is the decoded token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id,omitempty"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

var parser = jwt.NewParser()

// Decode returns the token claims, or nil when raw is empty, malformed or carries no exp.
func Decode(raw string) *Claims {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return claims
}

// ExpiryTime returns the token expiry.
func ExpiryTime(raw string) (time.Time, bool) {
	claims := Decode(raw)
	if claims == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiryTimeMillis returns the token expiry in epoch milliseconds.
func ExpiryTimeMillis(raw string) (int64, bool) {
	exp, ok := ExpiryTime(raw)
	if !ok {
		return 0, false
	}
	return exp.UnixMilli(), true
}

// IsValid reports whether raw decodes and expires strictly after now.
func IsValid(raw string, now time.Time) bool {
	exp, ok := ExpiryTime(raw)
	if !ok {
		return false
	}
	return exp.After(now)
}

// ShouldRefresh reports 0 < exp-now <= threshold. An already expired token is never due.
func ShouldRefresh(raw string, now time.Time, threshold time.Duration) bool {
	exp, ok := ExpiryTime(raw)
	if !ok {
		return false
	}
	remaining := exp.Sub(now)
	return remaining > 0 && remaining <= threshold
}

// UserFromClaims extracts the embedded identity. It returns nil for nil claims.
func UserFromClaims(c *Claims) *domain.User {
	if c == nil {
		return nil
	}
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	return &domain.User{
		ID:          id,
		Email:       c.Email,
		Role:        c.Role,
		Permissions: append([]string(nil), c.Permissions...),
	}
}
