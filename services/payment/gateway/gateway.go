// Package gateway holds one adapter per external payment provider. Each
// adapter reproduces its provider's canonicalization and signing scheme
// exactly; a single reordered byte invalidates every signature, so the
// field orders below are wire contracts, not style choices.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"skybook/models"
)

// Protocol-level errors. InvalidSignature is always a hard rejection and
// is logged as a security event by the caller, never a soft outcome.
var (
	ErrInvalidSignature   = errors.New("invalid gateway signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrMalformedCallback  = errors.New("malformed gateway callback")
)

// CallbackResult is a verified, provider-neutral callback outcome.
type CallbackResult struct {
	// OrderRef is our payment reference echoed back by the provider.
	OrderRef string
	// TransactionID is the provider's transaction id: the idempotency key.
	TransactionID string
	// Amount as reported by the provider, in smallest currency units.
	Amount int64
	// Success per the provider's response-code table.
	Success bool
	// ResponseCode is the raw provider code, kept for the transaction log.
	ResponseCode string
	// FailureReason is the canonical reason when Success is false.
	FailureReason string
}

// Gateway is the uniform adapter interface. CreatePaymentRequest builds
// (or fetches) the redirect the customer must follow; VerifyCallback
// recomputes the expected signature server-side and rejects any mismatch.
type Gateway interface {
	Name() string
	CreatePaymentRequest(payment *models.Payment, booking *models.Booking) (redirectURL string, err error)
	VerifyCallback(params map[string]string) (*CallbackResult, error)
}

// Registry maps provider names to adapters.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, gw := range gws {
		r.gateways[gw.Name()] = gw
	}
	return r
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(name string) (Gateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("unsupported payment provider: %s", name)
	}
	return gw, nil
}

// Names lists the registered providers.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		out = append(out, name)
	}
	return out
}

// httpClient is shared by the adapters that call out to their provider
// when creating a payment. No lock is ever held across these calls.
var httpClient = &http.Client{Timeout: 10 * time.Second}
