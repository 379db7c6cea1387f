package domain

// User is the cached identity record persisted next to the access token.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// WildcardPermission grants every permission.
const WildcardPermission = "*"

func (u *User) IsActive() bool {
	return u != nil && (u.Status == "" || u.Status == "active")
}

// HasAnyRole reports whether the user holds one of roles. An empty list is satisfied by anyone.
func (u *User) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	if u == nil {
		return false
	}
	for _, role := range roles {
		if role == u.Role {
			return true
		}
	}
	return false
}

// HasPermissions reports whether the user holds every permission in required.
func (u *User) HasPermissions(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if u == nil {
		return false
	}
	granted := make(map[string]struct{}, len(u.Permissions))
	for _, p := range u.Permissions {
		if p == WildcardPermission {
			return true
		}
		granted[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := granted[p]; !ok {
			return false
		}
	}
	return true
}
