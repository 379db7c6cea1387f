// Package access decides what the current user may see and keeps that
// decision current as credentials, session time, security and operator
// flags change.
package access

import (
	"sort"
	"strings"
	"time"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/usecase/security"
)

// Clearance is the security level a page demands.
type Clearance string

const (
	ClearanceNone Clearance = "none"
	// ClearanceStandard needs the minimum score and no active threats.
	ClearanceStandard Clearance = "standard"
	// ClearanceTolerant needs the minimum score and tolerates low and medium threats.
	ClearanceTolerant Clearance = "tolerant"
)

// Requirements describe one protected area.
type Requirements struct {
	// Roles are any-of; empty accepts every role.
	Roles []string
	// Permissions are all-of; "*" held by the user satisfies everything.
	Permissions []string
	AllowGuests bool
	// OverrideRoles may enter during maintenance.
	OverrideRoles []string
	Clearance     Clearance
	// MinScore defaults to the security clearance score when zero.
	MinScore int
}

// Key identifies the requirement set for caching verdicts.
func (r Requirements) Key() string {
	roles := append([]string(nil), r.Roles...)
	perms := append([]string(nil), r.Permissions...)
	sort.Strings(roles)
	sort.Strings(perms)
	return strings.Join(roles, ",") + "|" + strings.Join(perms, ",")
}

func (r Requirements) minScore() int {
	if r.MinScore > 0 {
		return r.MinScore
	}
	return security.DefaultClearanceScore
}

func (r Requirements) needsClearance() bool {
	return r.Clearance != "" && r.Clearance != ClearanceNone
}

// Facts are everything a decision depends on, captured at one instant.
type Facts struct {
	Now            time.Time
	Authenticated  bool
	User           *domain.User
	SessionExpired bool
	Maintenance    bool
	LockedUntil    time.Time
	// Assessment is nil until the security monitor has completed a scan.
	Assessment *domain.Assessment
}

// Decide maps facts to a decision. The first failing check wins, in order:
// locked, maintenance, unauthenticated, session expired, access denied,
// security denied.
func Decide(f Facts, req Requirements) domain.Decision {
	if f.LockedUntil.After(f.Now) {
		return domain.DecisionLocked
	}
	if f.Maintenance && !canOverride(f, req) {
		return domain.DecisionMaintenance
	}
	if !f.Authenticated {
		if req.AllowGuests {
			return domain.DecisionAuthenticated
		}
		return domain.DecisionUnauthenticated
	}
	if f.SessionExpired {
		return domain.DecisionSessionExpired
	}
	if (f.User != nil && !f.User.IsActive()) || !f.User.HasAnyRole(req.Roles...) || !f.User.HasPermissions(req.Permissions...) {
		return domain.DecisionAccessDenied
	}
	if req.needsClearance() {
		if f.Assessment == nil {
			return domain.DecisionChecking
		}
		if !meetsClearance(*f.Assessment, req) {
			return domain.DecisionSecurityDenied
		}
	}
	return domain.DecisionAuthenticated
}

func canOverride(f Facts, req Requirements) bool {
	return f.Authenticated && len(req.OverrideRoles) > 0 && f.User.HasAnyRole(req.OverrideRoles...)
}

func meetsClearance(a domain.Assessment, req Requirements) bool {
	if req.Clearance == ClearanceTolerant {
		return a.Score >= req.minScore() && a.Highest().Rank() < domain.SeverityHigh.Rank()
	}
	return a.IsSecure(req.minScore())
}
