package transport

import "time"

// LoginRequest carries a token pair issued by the backend to the local guard.
type LoginRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type SessionCheckResponse struct {
	Valid bool `json:"valid"`
}

type PermissionCheckRequest struct {
	UserID      string   `json:"user_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type PermissionCheckResponse struct {
	Allowed bool `json:"allowed"`
}

type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

type LockRequest struct {
	Until time.Time `json:"until"`
}

// DecisionResponse is what the UI layer renders for a guarded area.
type DecisionResponse struct {
	Decision   string `json:"decision"`
	Allowed    bool   `json:"allowed"`
	Message    string `json:"message"`
	Affordance string `json:"affordance"`
}

// SessionResponse summarises the local session for the UI layer.
type SessionResponse struct {
	Decision        DecisionResponse `json:"access"`
	State           string           `json:"state"`
	ExpiresAt       time.Time        `json:"expires_at"`
	SecondsToExpiry int64            `json:"seconds_to_expiry"`
	LastActivity    time.Time        `json:"last_activity"`
	UserID          string           `json:"user_id,omitempty"`
	Role            string           `json:"role,omitempty"`
}
