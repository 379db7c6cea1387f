package transport

import (
	"strings"

	"github.com/fastygo/storefront-guard/domain"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every JSON body the guard API writes. Denials carry the
// decision in Code and its recovery affordance in Meta.
type Envelope struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  any    `json:"error,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

func NewSuccess(data, meta any) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

func NewError(code string, err, meta any) Envelope {
	return Envelope{Status: StatusError, Code: code, Error: err, Meta: meta}
}

// NewDenied answers a request the gate did not admit.
func NewDenied(d domain.Decision) Envelope {
	return NewError(DeniedCode(d), d.Message(), NewDecisionResponse(d))
}

// DeniedCode is the envelope code for d, e.g. SESSION_EXPIRED.
func DeniedCode(d domain.Decision) string {
	return strings.ToUpper(string(d))
}
