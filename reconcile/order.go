package reconcile

import (
	"context"
	"errors"
	"time"
)

// ErrOrderNotFound is returned by OrderStore.Get when no order exists
// for the given id. The engine never creates orders.
var ErrOrderNotFound = errors.New("order not found")

// Order is the locally owned order record. It is created by checkout
// (an external collaborator) and mutated only by the reconciliation
// engine once payment notifications arrive.
type Order struct {
	ID                 string           `json:"id"`
	Status             OrderStatus      `json:"status"`
	PaymentStatus      string           `json:"payment_status,omitempty"`
	PaymentExternalID  string           `json:"payment_external_id,omitempty"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	PaymentDetails     *PaymentSnapshot `json:"payment_details,omitempty"`
	PaymentConfirmedAt *time.Time       `json:"payment_confirmed_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// PaymentSnapshot is the structured snapshot of the last reconciled
// payment. It is overwritten whole on every reconciliation, never merged.
type PaymentSnapshot struct {
	StatusDetail      string  `json:"status_detail,omitempty"`
	PaymentTypeID     string  `json:"payment_type_id,omitempty"`
	PaymentMethodID   string  `json:"payment_method_id,omitempty"`
	TransactionAmount float64 `json:"transaction_amount,omitempty"`
	Installments      int     `json:"installments,omitempty"`
}

// PaymentUpdate carries the full set of payment fields written in one
// atomic order update.
type PaymentUpdate struct {
	Status            OrderStatus
	PaymentStatus     string
	PaymentExternalID string
	PaymentMethod     string
	Details           PaymentSnapshot
	ConfirmedAt       time.Time
}

// OrderStore is the order persistence contract the engine consumes. Both
// operations are assumed atomic at single-document granularity:
// ApplyPayment must write all fields in one statement, not a read-then-
// write split across round trips.
type OrderStore interface {
	Get(ctx context.Context, id string) (*Order, error)
	ApplyPayment(ctx context.Context, id string, update PaymentUpdate) error
}
