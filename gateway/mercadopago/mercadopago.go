// Package mercadopago implements the gateway.PaymentSource contract for
// the Mercado Pago payments API.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inhousecard/paycore/gateway"
)

const (
	apiProductionURL = "https://api.mercadopago.com"

	endpointPaymentRetrieve = "/v1/payments/%s" // %s will be replaced with payment ID

	defaultTimeout = 30 * time.Second
)

// MercadoPagoSource implements the gateway.PaymentSource interface for
// Mercado Pago.
type MercadoPagoSource struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewSource creates a new Mercado Pago payment source
func NewSource() gateway.PaymentSource {
	return &MercadoPagoSource{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Initialize sets up the source with API credentials.
func (s *MercadoPagoSource) Initialize(conf map[string]string) error {
	s.accessToken = conf["accessToken"]
	if s.accessToken == "" {
		return errors.New("mercadopago: accessToken is required")
	}

	s.baseURL = conf["baseURL"]
	if s.baseURL == "" {
		s.baseURL = apiProductionURL
	}

	return nil
}

// Name returns the gateway identifier.
func (s *MercadoPagoSource) Name() string {
	return "mercadopago"
}

// paymentResponse is the subset of the Mercado Pago payment resource the
// reconciler consumes. The id arrives as a JSON number.
type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	PaymentTypeID     string      `json:"payment_type_id"`
	PaymentMethodID   string      `json:"payment_method_id"`
	TransactionAmount float64     `json:"transaction_amount"`
	Installments      int         `json:"installments"`
	ExternalReference string      `json:"external_reference"`
}

// PaymentDetails fetches the authoritative payment record by id.
func (s *MercadoPagoSource) PaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	if paymentID == "" {
		return nil, errors.New("mercadopago: paymentID is required")
	}

	url := s.baseURL + fmt.Sprintf(endpointPaymentRetrieve, paymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago: HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var payment paymentResponse
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("mercadopago: failed to parse payment response: %w", err)
	}

	return &gateway.PaymentDetails{
		ID:                payment.ID.String(),
		Status:            payment.Status,
		StatusDetail:      payment.StatusDetail,
		PaymentTypeID:     payment.PaymentTypeID,
		PaymentMethodID:   payment.PaymentMethodID,
		TransactionAmount: payment.TransactionAmount,
		Installments:      payment.Installments,
		ExternalReference: payment.ExternalReference,
	}, nil
}

// SetTimeout overrides the HTTP client timeout. Zero restores the
// default.
func (s *MercadoPagoSource) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultTimeout
	}
	s.client.Timeout = d
}
