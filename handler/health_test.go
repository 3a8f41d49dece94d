package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/infra/store"
)

func TestHandleHealth(t *testing.T) {
	orders, err := store.NewSQLiteOrderStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("failed to open order store: %v", err)
	}
	defer orders.Close()

	h := NewHealthHandler(orders, true, "mercadopago")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["gateway"] != "mercadopago" {
		t.Errorf("gateway = %v, want mercadopago", data["gateway"])
	}
	storeHealth := data["order_store"].(map[string]any)
	if storeHealth["connected"] != true {
		t.Errorf("order store connected = %v, want true", storeHealth["connected"])
	}
	auditHealth := data["audit_log"].(map[string]any)
	if auditHealth["enabled"] != true {
		t.Errorf("audit log enabled = %v, want true", auditHealth["enabled"])
	}
}

func TestHandleHealthWithoutOrderStore(t *testing.T) {
	h := NewHealthHandler(nil, false, "mercadopago")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	// The endpoint itself stays 200; degradation shows in the body.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", data["status"])
	}
	storeHealth := data["order_store"].(map[string]any)
	if storeHealth["status"] != "not_configured" {
		t.Errorf("order store status = %v, want not_configured", storeHealth["status"])
	}
}
