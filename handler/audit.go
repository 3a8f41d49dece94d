package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/inhousecard/paycore/infra/opensearch"
	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/reconcile"
)

// AuditQuerier is the read side of the audit log consumed by the
// monitor endpoint.
type AuditQuerier interface {
	Search(ctx context.Context, q opensearch.SearchQuery) ([]reconcile.AuditEntry, error)
}

// AuditHandler serves the audit trail behind the webhook monitor screen.
type AuditHandler struct {
	audit AuditQuerier
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit AuditQuerier) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// HandleList processes GET /v1/audit with optional paymentId, orderId,
// outcome, hours and limit query parameters. Entries come back newest
// first.
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		response.Error(w, http.StatusServiceUnavailable, "Audit log is not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	query := opensearch.SearchQuery{
		ExternalPaymentID: r.URL.Query().Get("paymentId"),
		OrderID:           r.URL.Query().Get("orderId"),
		Outcome:           r.URL.Query().Get("outcome"),
		Hours:             24,
	}

	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		if hours, err := strconv.Atoi(hoursStr); err == nil && hours > 0 {
			query.Hours = hours
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			query.Size = limit
		}
	}

	entries, err := h.audit.Search(ctx, query)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Audit search failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Audit entries retrieved", map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
