package transport

import (
	"net/http"

	"github.com/fastygo/storefront-guard/domain"
)

// NewDecisionResponse renders d for the UI layer.
func NewDecisionResponse(d domain.Decision) DecisionResponse {
	return DecisionResponse{
		Decision:   string(d),
		Allowed:    d.Allowed(),
		Message:    d.Message(),
		Affordance: string(d.Affordance()),
	}
}

// DecisionStatus is the HTTP status a guarded route answers with for d.
func DecisionStatus(d domain.Decision) int {
	switch d {
	case domain.DecisionAuthenticated:
		return http.StatusOK
	case domain.DecisionUnauthenticated, domain.DecisionSessionExpired:
		return http.StatusUnauthorized
	case domain.DecisionAccessDenied, domain.DecisionSecurityDenied:
		return http.StatusForbidden
	case domain.DecisionLocked:
		return http.StatusLocked
	case domain.DecisionError:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
