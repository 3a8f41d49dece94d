// Package reconcile implements the payment reconciliation core: it
// normalizes gateway webhook notifications, authenticates them, and
// applies exactly one consistent state transition to the order they
// reference. Redelivered and out-of-order notifications converge to the
// same final state because every write re-derives from freshly fetched
// authoritative payment details.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inhousecard/paycore/gateway"
	"github.com/inhousecard/paycore/infra/logger"
)

// Error taxonomy for reconciliation failures. Every failure still
// produces an audit entry and a 200 acknowledgement at the HTTP
// boundary; these errors surface only through the audit trail and tests.
var (
	ErrAuthenticationFailed = errors.New("webhook signature verification failed")
	ErrUpstreamFetch        = errors.New("payment details fetch failed")
	ErrReferenceMissing     = errors.New("payment carries no order reference")
	ErrStoreWrite           = errors.New("order store operation failed")
)

const defaultFetchTimeout = 15 * time.Second

// Engine orchestrates reconciliation: fetch authoritative payment
// details, resolve and load the order, map the gateway status, and apply
// the transition idempotently. Dependencies are injected once at
// construction; the engine holds no global client handles.
type Engine struct {
	source       gateway.PaymentSource
	orders       OrderStore
	audit        AuditStore
	fetchTimeout time.Duration
}

// NewEngine creates a reconciliation engine. A zero fetchTimeout falls
// back to a bounded default so a slow gateway cannot exhaust the
// handler pool.
func NewEngine(source gateway.PaymentSource, orders OrderStore, audit AuditStore, fetchTimeout time.Duration) *Engine {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Engine{
		source:       source,
		orders:       orders,
		audit:        audit,
		fetchTimeout: fetchTimeout,
	}
}

// Process reconciles a single normalized notification. Every branch,
// success or failure, appends exactly one audit entry. The returned
// error classifies the failure for callers and tests; it must not be
// translated into a non-2xx HTTP response.
func (e *Engine) Process(ctx context.Context, n Notification) error {
	if !n.PaymentRelevant() {
		e.append(ctx, newEntry(n, OutcomeInfo, "", map[string]any{
			"message": "notification ignored: not a payment event or no payment id",
		}))
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	details, err := e.source.PaymentDetails(fetchCtx, n.ExternalPaymentID)
	cancel()
	if err != nil {
		e.append(ctx, newEntry(n, OutcomeError, "", map[string]any{
			"error":   "failed to fetch payment details from gateway",
			"message": err.Error(),
			"gateway": e.source.Name(),
		}))
		return fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	orderID := details.ExternalReference
	if orderID == "" {
		e.append(ctx, newEntry(n, OutcomeError, "", map[string]any{
			"error":          "no order reference in payment details",
			"payment_status": details.Status,
		}))
		return ErrReferenceMissing
	}

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			e.append(ctx, newEntry(n, OutcomeError, orderID, map[string]any{
				"error": "order not found",
			}))
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		e.append(ctx, newEntry(n, OutcomeError, orderID, map[string]any{
			"error":   "order load failed",
			"message": err.Error(),
		}))
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	newStatus := MapStatus(details.Status)
	update := PaymentUpdate{
		Status:            newStatus,
		PaymentStatus:     details.Status,
		PaymentExternalID: details.ID,
		PaymentMethod:     details.PaymentMethodID,
		Details: PaymentSnapshot{
			StatusDetail:      details.StatusDetail,
			PaymentTypeID:     details.PaymentTypeID,
			PaymentMethodID:   details.PaymentMethodID,
			TransactionAmount: details.TransactionAmount,
			Installments:      details.Installments,
		},
		ConfirmedAt: time.Now().UTC(),
	}

	// The write always runs, even when the status appears unchanged: a
	// stale partial update must be self-healing on redelivery.
	if err := e.orders.ApplyPayment(ctx, order.ID, update); err != nil {
		e.append(ctx, newEntry(n, OutcomeError, orderID, map[string]any{
			"error":   "order update failed",
			"message": err.Error(),
		}))
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	e.append(ctx, newEntry(n, OutcomeSuccess, orderID, map[string]any{
		"old_status":         string(order.Status),
		"new_status":         string(newStatus),
		"old_payment_status": order.PaymentStatus,
		"new_payment_status": details.Status,
	}))

	logger.Info("order reconciled", logger.LogContext{
		Gateway: e.source.Name(),
		Fields: map[string]any{
			"order_id":   orderID,
			"payment_id": details.ID,
			"old_status": string(order.Status),
			"new_status": string(newStatus),
		},
	})

	return nil
}

// RecordReceived appends the initial audit entry for an inbound
// notification, before any processing outcome is known.
func (e *Engine) RecordReceived(ctx context.Context, n Notification) {
	e.append(ctx, newEntry(n, OutcomeReceived, "", map[string]any{
		"payload": string(n.RawPayload),
	}))
}

// RecordAuthFailure appends the audit entry for a notification whose
// signature was present and invalid. No order mutation follows.
func (e *Engine) RecordAuthFailure(ctx context.Context, n Notification) {
	e.append(ctx, newEntry(n, OutcomeError, "", map[string]any{
		"error": "invalid webhook signature",
	}))
}

// append writes an audit entry best effort. Audit failures are logged to
// the process log and never block reconciliation.
func (e *Engine) append(ctx context.Context, entry AuditEntry) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		logger.Error("audit append failed", err, logger.LogContext{
			Fields: map[string]any{
				"event_kind": entry.EventKind,
				"payment_id": entry.ExternalPaymentID,
				"outcome":    string(entry.Outcome),
			},
		})
	}
}

func newEntry(n Notification, outcome AuditOutcome, orderID string, detail map[string]any) AuditEntry {
	return AuditEntry{
		ID:                uuid.New().String(),
		Timestamp:         time.Now().UTC(),
		EventKind:         n.EventKind,
		ExternalPaymentID: n.ExternalPaymentID,
		DetectedFormat:    n.DetectedFormat,
		Outcome:           outcome,
		OrderID:           orderID,
		Detail:            detail,
	}
}
