package realtime

import (
	"net/url"
	"strings"
)

// Origins are the bases a relative socket path is resolved against.
// WebSocket wins over HTTP when both are set.
type Origins struct {
	WebSocket string
	HTTP      string
}

// ResolveURL turns target into an absolute ws:// or wss:// URL.
// It reports false when no URL can be derived; the client is then disabled.
func ResolveURL(target string, origins Origins) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	if ref.Scheme != "" {
		return socketURL(ref)
	}

	for _, origin := range []string{origins.WebSocket, origins.HTTP} {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		base, err := url.Parse(origin)
		if err != nil || base.Scheme == "" {
			return "", false
		}
		return socketURL(base.ResolveReference(ref))
	}
	return "", false
}

func socketURL(u *url.URL) (string, bool) {
	if u.Host == "" {
		return "", false
	}
	out := *u
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		out.Scheme = strings.ToLower(u.Scheme)
	case "http":
		out.Scheme = "ws"
	case "https":
		out.Scheme = "wss"
	default:
		return "", false
	}
	return out.String(), true
}
