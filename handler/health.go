package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/infra/store"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	orders       *store.SQLiteOrderStore
	auditEnabled bool
	gatewayName  string
	startTime    time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orders *store.SQLiteOrderStore, auditEnabled bool, gatewayName string) *HealthHandler {
	return &HealthHandler{
		orders:       orders,
		auditEnabled: auditEnabled,
		gatewayName:  gatewayName,
		startTime:    time.Now(),
	}
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
	Uptime     string            `json:"uptime"`
	OrderStore *OrderStoreHealth `json:"order_store"`
	AuditLog   *AuditLogHealth   `json:"audit_log"`
	Gateway    string            `json:"gateway"`
}

// OrderStoreHealth represents order store health status
type OrderStoreHealth struct {
	Status       string `json:"status"`
	Connected    bool   `json:"connected"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// AuditLogHealth represents audit log health status
type AuditLogHealth struct {
	Enabled bool `json:"enabled"`
}

// HandleHealth processes GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := &HealthStatus{
		Status:    "ok",
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		AuditLog:  &AuditLogHealth{Enabled: h.auditEnabled},
		Gateway:   h.gatewayName,
	}

	storeHealth := &OrderStoreHealth{Status: "ok", Connected: true}
	start := time.Now()
	if h.orders != nil {
		if err := h.orders.Ping(ctx); err != nil {
			storeHealth.Status = "error"
			storeHealth.Connected = false
			storeHealth.Error = err.Error()
			status.Status = "degraded"
		}
	} else {
		storeHealth.Status = "not_configured"
		storeHealth.Connected = false
		status.Status = "degraded"
	}
	storeHealth.ResponseTime = time.Since(start).String()
	status.OrderStore = storeHealth

	response.Success(w, http.StatusOK, "Service is healthy", status)
}
