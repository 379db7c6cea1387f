package domain

// Decision is the derived access outcome for a guarded view.
type Decision string

const (
	DecisionChecking        Decision = "checking"
	DecisionUnauthenticated Decision = "unauthenticated"
	DecisionSessionExpired  Decision = "session_expired"
	DecisionAccessDenied    Decision = "access_denied"
	DecisionSecurityDenied  Decision = "security_denied"
	DecisionLocked          Decision = "locked"
	DecisionMaintenance     Decision = "maintenance"
	DecisionAuthenticated   Decision = "authenticated"
	DecisionError           Decision = "error"
)

// Affordance tells the UI which action to offer for a decision.
type Affordance string

const (
	AffordanceNone         Affordance = "none"
	AffordanceWait         Affordance = "wait"
	AffordanceLogin        Affordance = "login"
	AffordanceRetry        Affordance = "retry"
	AffordanceContactAdmin Affordance = "contact_admin"
)

// Allowed reports whether protected content renders.
func (d Decision) Allowed() bool {
	return d == DecisionAuthenticated
}

// Message is the user-facing explanation for the decision.
func (d Decision) Message() string {
	switch d {
	case DecisionChecking:
		return "Verifying your access..."
	case DecisionUnauthenticated:
		return "Please sign in to continue."
	case DecisionSessionExpired:
		return "Your session has expired. Please sign in again."
	case DecisionAccessDenied:
		return "You do not have permission to view this page."
	case DecisionSecurityDenied:
		return "Your connection does not meet the security requirements for this page."
	case DecisionLocked:
		return "Your account is temporarily locked. Try again later."
	case DecisionMaintenance:
		return "This area is under maintenance."
	case DecisionAuthenticated:
		return "Access granted."
	case DecisionError:
		return "We could not verify your access. Please retry."
	default:
		return "Access state unknown."
	}
}

// Affordance returns the recovery action for the decision.
func (d Decision) Affordance() Affordance {
	switch d {
	case DecisionUnauthenticated, DecisionSessionExpired:
		return AffordanceLogin
	case DecisionAccessDenied, DecisionSecurityDenied:
		return AffordanceContactAdmin
	case DecisionError:
		return AffordanceRetry
	case DecisionChecking, DecisionLocked, DecisionMaintenance:
		return AffordanceWait
	default:
		return AffordanceNone
	}
}
