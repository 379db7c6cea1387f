package security

import "github.com/fastygo/storefront-guard/domain"

// Signals are the environment observations a score is computed from.
type Signals struct {
	TransportSecure   bool `json:"transport_secure"`
	MixedContent      bool `json:"mixed_content"`
	CredentialPresent bool `json:"credential_present"`
}

// Penalties are subtracted from a perfect score of 100 for each weakness.
type Penalties struct {
	InsecureTransport int
	MixedContent      int
	MissingCredential int
}

// DefaultPenalties returns the stock weights.
func DefaultPenalties() Penalties {
	return Penalties{
		InsecureTransport: 20,
		MixedContent:      10,
		MissingCredential: 5,
	}
}

// DefaultClearanceScore is the minimum score considered secure.
const DefaultClearanceScore = 80

// ComputeScore starts at 100, subtracts penalties for each weakness and floors at zero.
func ComputeScore(s Signals, p Penalties) int {
	score := 100
	if !s.TransportSecure {
		score -= p.InsecureTransport
	}
	if s.MixedContent {
		score -= p.MixedContent
	}
	if !s.CredentialPresent {
		score -= p.MissingCredential
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Detector inspects signals and returns a threat, or nil when nothing is wrong.
type Detector func(Signals) *domain.Threat

// DefaultDetectors is the stock detector set.
func DefaultDetectors() []Detector {
	return []Detector{InsecureConnectionDetector}
}

// InsecureConnectionDetector flags unencrypted transport.
func InsecureConnectionDetector(s Signals) *domain.Threat {
	if s.TransportSecure {
		return nil
	}
	return &domain.Threat{
		ID:          "insecure-connection",
		Severity:    domain.SeverityHigh,
		Title:       "Insecure connection",
		Description: "The storefront is served over an unencrypted connection.",
	}
}

// MixedContentDetector flags insecure resources loaded into a secure page.
func MixedContentDetector(s Signals) *domain.Threat {
	if !s.MixedContent {
		return nil
	}
	return &domain.Threat{
		ID:          "mixed-content",
		Severity:    domain.SeverityMedium,
		Title:       "Mixed content",
		Description: "Some resources are loaded over an unencrypted connection.",
	}
}

// CredentialExposureDetector flags a stored credential that travels over an unencrypted connection.
func CredentialExposureDetector(s Signals) *domain.Threat {
	if s.TransportSecure || !s.CredentialPresent {
		return nil
	}
	return &domain.Threat{
		ID:          "credential-exposure",
		Severity:    domain.SeverityCritical,
		Title:       "Credential exposure",
		Description: "A stored credential is being sent over an unencrypted connection.",
	}
}

// DetectThreats runs detectors in order and collects their findings.
func DetectThreats(s Signals, detectors ...Detector) []domain.Threat {
	threats := make([]domain.Threat, 0, len(detectors))
	for _, detect := range detectors {
		if detect == nil {
			continue
		}
		if threat := detect(s); threat != nil {
			threats = append(threats, *threat)
		}
	}
	return threats
}
