// Package gateway defines the outbound contract to payment gateways. The
// reconciliation engine treats the gateway as the sole source of truth
// for payment state: the inbound notification is only a trigger, and
// every order write is re-derived from a fresh details fetch.
package gateway

import "context"

// PaymentDetails is the authoritative snapshot of a payment as reported
// by the gateway's query API.
type PaymentDetails struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail,omitempty"`
	PaymentTypeID     string  `json:"payment_type_id,omitempty"`
	PaymentMethodID   string  `json:"payment_method_id,omitempty"`
	TransactionAmount float64 `json:"transaction_amount,omitempty"`
	Installments      int     `json:"installments,omitempty"`
	ExternalReference string  `json:"external_reference,omitempty"`
}

// PaymentSource fetches authoritative payment details by the gateway's
// payment identifier. Implementations must honor context cancellation
// and deadlines; the engine bounds every fetch with a timeout.
type PaymentSource interface {
	// Initialize configures the source with its credentials. It must be
	// called once before any fetch.
	Initialize(conf map[string]string) error

	// Name returns the gateway identifier used in logs and audit entries.
	Name() string

	// PaymentDetails retrieves the payment by its external id. A network
	// failure, an unknown id, or a non-2xx response all surface as an
	// error; the engine never guesses from the notification body alone.
	PaymentDetails(ctx context.Context, paymentID string) (*PaymentDetails, error)
}

// SourceFactory creates an uninitialized payment source.
type SourceFactory func() PaymentSource
