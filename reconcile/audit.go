package reconcile

import (
	"context"
	"time"
)

// AuditOutcome classifies what happened to a processed notification.
type AuditOutcome string

const (
	OutcomeReceived AuditOutcome = "received"
	OutcomeSuccess  AuditOutcome = "success"
	OutcomeInfo     AuditOutcome = "info"
	OutcomeError    AuditOutcome = "error"
)

// AuditEntry is the append-only record written for every inbound
// notification. Entries are write-once and self-contained: each carries
// its own timestamp so consumers can re-sort regardless of indexing
// order.
type AuditEntry struct {
	ID                string         `json:"id"`
	Timestamp         time.Time      `json:"timestamp"`
	EventKind         string         `json:"event_kind"`
	ExternalPaymentID string         `json:"external_payment_id"`
	DetectedFormat    string         `json:"detected_format,omitempty"`
	Outcome           AuditOutcome   `json:"outcome"`
	OrderID           string         `json:"order_id,omitempty"`
	Detail            map[string]any `json:"detail,omitempty"`
}

// AuditStore is the append-only audit log consumed by the engine and the
// webhook handler. Append is best effort: a failure to audit must never
// block reconciliation.
type AuditStore interface {
	Append(ctx context.Context, entry AuditEntry) error
}
