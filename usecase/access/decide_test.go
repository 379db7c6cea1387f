package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/storefront-guard/domain"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func passingFacts() Facts {
	return Facts{
		Now:           now,
		Authenticated: true,
		User:          &domain.User{ID: "u1", Role: "admin", Permissions: []string{"orders:read", "orders:write"}},
		Assessment:    &domain.Assessment{Score: 95},
	}
}

func adminRequirements() Requirements {
	return Requirements{
		Roles:         []string{"admin"},
		Permissions:   []string{"orders:read"},
		OverrideRoles: []string{"superadmin"},
		Clearance:     ClearanceStandard,
	}
}

func TestDecide_AllPass(t *testing.T) {
	assert.Equal(t, domain.DecisionAuthenticated, Decide(passingFacts(), adminRequirements()))
}

func TestDecide_SingleFlip(t *testing.T) {
	tests := []struct {
		name string
		flip func(*Facts, *Requirements)
		want domain.Decision
	}{
		{"locked", func(f *Facts, _ *Requirements) { f.LockedUntil = now.Add(time.Minute) }, domain.DecisionLocked},
		{"maintenance", func(f *Facts, _ *Requirements) { f.Maintenance = true }, domain.DecisionMaintenance},
		{"not signed in", func(f *Facts, _ *Requirements) { f.Authenticated = false }, domain.DecisionUnauthenticated},
		{"session expired", func(f *Facts, _ *Requirements) { f.SessionExpired = true }, domain.DecisionSessionExpired},
		{"wrong role", func(f *Facts, _ *Requirements) { f.User.Role = "customer" }, domain.DecisionAccessDenied},
		{"missing permission", func(_ *Facts, r *Requirements) { r.Permissions = append(r.Permissions, "refunds:issue") }, domain.DecisionAccessDenied},
		{"suspended user", func(f *Facts, _ *Requirements) { f.User.Status = "suspended" }, domain.DecisionAccessDenied},
		{"low score", func(f *Facts, _ *Requirements) { f.Assessment.Score = 79 }, domain.DecisionSecurityDenied},
		{"high threat", func(f *Facts, _ *Requirements) {
			f.Assessment.Threats = []domain.Threat{{ID: "insecure-connection", Severity: domain.SeverityHigh}}
		}, domain.DecisionSecurityDenied},
		{"medium threat", func(f *Facts, _ *Requirements) {
			f.Assessment.Threats = []domain.Threat{{ID: "mixed-content", Severity: domain.SeverityMedium}}
		}, domain.DecisionSecurityDenied},
		{"unknown assessment", func(f *Facts, _ *Requirements) { f.Assessment = nil }, domain.DecisionChecking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r := passingFacts(), adminRequirements()
			tt.flip(&f, &r)
			assert.Equal(t, tt.want, Decide(f, r))
		})
	}
}

func TestDecide_Order(t *testing.T) {
	f := passingFacts()
	f.LockedUntil = now.Add(time.Minute)
	f.Maintenance = true
	f.SessionExpired = true
	assert.Equal(t, domain.DecisionLocked, Decide(f, adminRequirements()))

	f.LockedUntil = now.Add(-time.Minute)
	assert.Equal(t, domain.DecisionMaintenance, Decide(f, adminRequirements()), "lapsed lock no longer applies")

	f.Maintenance = false
	f.Authenticated = false
	assert.Equal(t, domain.DecisionUnauthenticated, Decide(f, adminRequirements()))
}

func TestDecide_Guests(t *testing.T) {
	req := Requirements{AllowGuests: true, Roles: []string{"admin"}, Clearance: ClearanceStandard}
	assert.Equal(t, domain.DecisionAuthenticated, Decide(Facts{Now: now}, req))

	f := Facts{Now: now, Maintenance: true}
	assert.Equal(t, domain.DecisionMaintenance, Decide(f, req), "maintenance applies to guests")
}

func TestDecide_MaintenanceOverride(t *testing.T) {
	f := passingFacts()
	f.Maintenance = true
	f.User.Role = "superadmin"
	req := adminRequirements()
	req.Roles = []string{"admin", "superadmin"}
	assert.Equal(t, domain.DecisionAuthenticated, Decide(f, req))
}

func TestDecide_Clearance(t *testing.T) {
	f := passingFacts()
	f.Assessment = &domain.Assessment{Score: 90, Threats: []domain.Threat{{Severity: domain.SeverityMedium}}}

	req := adminRequirements()
	assert.Equal(t, domain.DecisionSecurityDenied, Decide(f, req), "any active threat fails standard clearance")

	f.Assessment.Threats[0].Severity = domain.SeverityLow
	assert.Equal(t, domain.DecisionSecurityDenied, Decide(f, req))

	req.Clearance = ClearanceTolerant
	assert.Equal(t, domain.DecisionAuthenticated, Decide(f, req), "tolerant admits low and medium threats")

	f.Assessment.Threats[0].Severity = domain.SeverityHigh
	assert.Equal(t, domain.DecisionSecurityDenied, Decide(f, req))

	f.Assessment = &domain.Assessment{Score: 79}
	assert.Equal(t, domain.DecisionSecurityDenied, Decide(f, req), "tolerant still needs the minimum score")

	req.Clearance = ClearanceNone
	f.Assessment = nil
	assert.Equal(t, domain.DecisionAuthenticated, Decide(f, req))

	req.Clearance = ClearanceStandard
	req.MinScore = 95
	f.Assessment = &domain.Assessment{Score: 94}
	assert.Equal(t, domain.DecisionSecurityDenied, Decide(f, req))
}

func TestDecide_WildcardPermission(t *testing.T) {
	f := passingFacts()
	f.User.Permissions = []string{domain.WildcardPermission}
	req := adminRequirements()
	req.Permissions = []string{"anything", "else"}
	assert.Equal(t, domain.DecisionAuthenticated, Decide(f, req))
}

func TestRequirements_Key(t *testing.T) {
	a := Requirements{Roles: []string{"b", "a"}, Permissions: []string{"y", "x"}}
	b := Requirements{Roles: []string{"a", "b"}, Permissions: []string{"x", "y"}}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Requirements{Roles: []string{"a"}}.Key())
}
