package domain

import "time"

// Severity ranks a threat. The zero value is unknown and ranks below low.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Threat is a single active finding reported by the security monitor.
type Threat struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Assessment is one snapshot of the security monitor. Snapshots are replaced, never patched.
type Assessment struct {
	Score     int       `json:"score"`
	Threats   []Threat  `json:"threats"`
	CheckedAt time.Time `json:"checked_at"`
}

// IsSecure reports score >= minScore with no active threats.
func (a Assessment) IsSecure(minScore int) bool {
	return a.Score >= minScore && len(a.Threats) == 0
}

// HasCritical reports whether any active threat is critical.
func (a Assessment) HasCritical() bool {
	return a.Highest() == SeverityCritical
}

// Highest returns the most severe active threat level, or "" when there are none.
func (a Assessment) Highest() Severity {
	var highest Severity
	for _, t := range a.Threats {
		if t.Severity.Rank() > highest.Rank() {
			highest = t.Severity
		}
	}
	return highest
}
