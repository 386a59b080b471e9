package knowledge

import (
	"context"
	"errors"
)

var (
	// ErrServiceTimeout means a completion call exceeded its deadline. It
	// degrades the one edge being checked, never the batch.
	ErrServiceTimeout = errors.New("completion service timeout")

	ErrMissingAPIKey = errors.New("completion service api key is required")
)

// Verdict is the completion service's answer for one candidate call.
type Verdict string

const (
	VerdictConfirmed   Verdict = "confirmed"
	VerdictUnconfirmed Verdict = "unconfirmed"
)

// VerifyRequest asks whether CallerBody invokes CandidateCallee.
type VerifyRequest struct {
	CallerName      string
	CallerBody      string
	CandidateCallee string
	Language        string
}

type VerifyResponse struct {
	Verdict   Verdict `json:"verdict"`
	Rationale string  `json:"rationale"`
}

// Confirmed reports whether the service confirmed the call.
func (r VerifyResponse) Confirmed() bool {
	return r.Verdict == VerdictConfirmed
}

// Service is the external completion service used for semantic checks.
type Service interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
}
