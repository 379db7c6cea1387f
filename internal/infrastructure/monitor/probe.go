package monitor

import (
	"context"
	"net/url"
	"strings"

	"github.com/fastygo/storefront-guard/usecase/security"
)

// CredentialChecker reports whether a credential is stored.
type CredentialChecker interface {
	HasCredential(ctx context.Context) bool
}

// EnvironmentProbe derives security signals from the storefront origin,
// the resources the page loads and the credential store.
type EnvironmentProbe struct {
	origin      string
	resources   []string
	credentials CredentialChecker
}

func NewEnvironmentProbe(origin string, resources []string, credentials CredentialChecker) *EnvironmentProbe {
	return &EnvironmentProbe{
		origin:      origin,
		resources:   append([]string(nil), resources...),
		credentials: credentials,
	}
}

func (p *EnvironmentProbe) Signals(ctx context.Context) security.Signals {
	secure := isSecureURL(p.origin)
	signals := security.Signals{TransportSecure: secure}
	if secure {
		for _, res := range p.resources {
			if isInsecureURL(res) {
				signals.MixedContent = true
				break
			}
		}
	}
	if p.credentials != nil {
		signals.CredentialPresent = p.credentials.HasCredential(ctx)
	}
	return signals
}

func isSecureURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return true
	}
	return false
}

// isInsecureURL is true only for explicit plain-text schemes; relative URLs inherit the origin.
func isInsecureURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		return true
	}
	return false
}
