// Package stripe implements the gateway.PaymentSource contract on top of
// the official Stripe SDK. Stripe's payment intent statuses are folded
// into the gateway-neutral status vocabulary the status mapper consumes,
// and the order reference travels in the intent's metadata.
package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/inhousecard/paycore/gateway"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// metadataReferenceKey is the payment intent metadata key carrying the
// local order id.
const metadataReferenceKey = "external_reference"

// StripeSource implements the gateway.PaymentSource interface for Stripe.
type StripeSource struct {
	api *client.API
}

// NewSource creates a new Stripe payment source
func NewSource() gateway.PaymentSource {
	return &StripeSource{}
}

// Initialize sets up the source with API credentials.
func (s *StripeSource) Initialize(conf map[string]string) error {
	secretKey := conf["secretKey"]
	if secretKey == "" {
		return errors.New("stripe: secretKey is required")
	}

	api := &client.API{}
	api.Init(secretKey, nil)
	s.api = api
	return nil
}

// Name returns the gateway identifier.
func (s *StripeSource) Name() string {
	return "stripe"
}

// PaymentDetails retrieves a payment intent and maps it to the neutral
// details shape.
func (s *StripeSource) PaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	if paymentID == "" {
		return nil, errors.New("stripe: paymentID is required")
	}
	if s.api == nil {
		return nil, errors.New("stripe: source not initialized")
	}

	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx

	intent, err := s.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to retrieve payment intent: %w", err)
	}

	details := &gateway.PaymentDetails{
		ID:                intent.ID,
		Status:            mapIntentStatus(intent.Status),
		StatusDetail:      string(intent.Status),
		TransactionAmount: float64(intent.Amount) / 100,
		Installments:      1,
		ExternalReference: intent.Metadata[metadataReferenceKey],
	}

	if len(intent.PaymentMethodTypes) > 0 {
		details.PaymentTypeID = intent.PaymentMethodTypes[0]
		details.PaymentMethodID = intent.PaymentMethodTypes[0]
	}

	return details, nil
}

// mapIntentStatus folds Stripe's intent statuses into the gateway-neutral
// vocabulary. Anything in-flight reads as pending; only a terminal
// cancellation reads as cancelled.
func mapIntentStatus(status stripeapi.PaymentIntentStatus) string {
	switch status {
	case stripeapi.PaymentIntentStatusSucceeded:
		return "approved"
	case stripeapi.PaymentIntentStatusCanceled:
		return "cancelled"
	case stripeapi.PaymentIntentStatusProcessing,
		stripeapi.PaymentIntentStatusRequiresAction,
		stripeapi.PaymentIntentStatusRequiresCapture,
		stripeapi.PaymentIntentStatusRequiresConfirmation,
		stripeapi.PaymentIntentStatusRequiresPaymentMethod:
		return "pending"
	default:
		return "pending"
	}
}
