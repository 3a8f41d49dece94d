package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/inhousecard/paycore/infra/logger"
	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/reconcile"
)

// signatureHeader is the header the gateway signs notifications with.
const signatureHeader = "X-Signature"

// WebhookHandler receives asynchronous payment notifications and feeds
// them through the reconciliation engine. Responses are always 200: a
// processing failure must never trigger the gateway's retry storm, and
// idempotent reconciliation makes the retries that do happen harmless.
type WebhookHandler struct {
	engines        map[string]*reconcile.Engine
	defaultGateway string
	verifier       *reconcile.Verifier
}

// NewWebhookHandler creates a webhook handler. engines maps gateway
// names to their reconciliation engines; defaultGateway serves the
// plain /webhook route.
func NewWebhookHandler(engines map[string]*reconcile.Engine, defaultGateway string, verifier *reconcile.Verifier) *WebhookHandler {
	return &WebhookHandler{
		engines:        engines,
		defaultGateway: defaultGateway,
		verifier:       verifier,
	}
}

// HandleWebhook processes POST /webhook and POST /webhooks/{gateway}.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gatewayName := chi.URLParam(r, "gateway")
	if gatewayName == "" {
		gatewayName = h.defaultGateway
	}

	engine, ok := h.engines[gatewayName]
	if !ok {
		// Unknown gateway path; still acknowledge so the sender stops
		// retrying a route that will never succeed.
		logger.Warn("webhook for unconfigured gateway", logger.LogContext{
			Gateway: gatewayName,
		})
		h.ack(w, "", "unknown gateway")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		logger.Error("failed to read webhook body", err, logger.LogContext{Gateway: gatewayName})
		h.ack(w, "", "unreadable body")
		return
	}

	notification := reconcile.Normalize(body)
	engine.RecordReceived(ctx, notification)

	logger.Info("webhook received", logger.LogContext{
		Gateway:   gatewayName,
		RequestID: r.Header.Get("X-Request-ID"),
		Fields: map[string]any{
			"detected_format": notification.DetectedFormat,
			"event_kind":      notification.EventKind,
			"payment_id":      notification.ExternalPaymentID,
		},
	})

	sigStatus := h.verifier.Verify(body, r.Header.Get(signatureHeader))
	switch sigStatus {
	case reconcile.SignatureMissing:
		// Some notification paths of the gateway omit the header; accept
		// but record the fact.
		logger.Warn("no signature provided in webhook request", logger.LogContext{Gateway: gatewayName})
	case reconcile.SignatureSkipped:
		logger.Debug("signature verification skipped: no secret configured", logger.LogContext{Gateway: gatewayName})
	case reconcile.SignatureToken:
		logger.Debug("provider token signature accepted", logger.LogContext{Gateway: gatewayName})
	}

	if !sigStatus.Accepted() {
		engine.RecordAuthFailure(ctx, notification)
		logger.Warn("invalid webhook signature", logger.LogContext{
			Gateway: gatewayName,
			Fields:  map[string]any{"payment_id": notification.ExternalPaymentID},
		})
		h.ack(w, "", "invalid signature")
		return
	}

	if err := engine.Process(ctx, notification); err != nil {
		logger.Error("webhook reconciliation failed", err, logger.LogContext{
			Gateway: gatewayName,
			Fields:  map[string]any{"payment_id": notification.ExternalPaymentID},
		})
		h.ack(w, "", err.Error())
		return
	}

	h.ack(w, "Webhook processed successfully", "")
}

// ack always answers 200 with a small acknowledgement body. Failures get
// an error-shaped body but never a retry-triggering status code.
func (h *WebhookHandler) ack(w http.ResponseWriter, message, errMessage string) {
	body := map[string]string{
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
	if errMessage != "" {
		body["error"] = errMessage
	} else {
		body["message"] = message
	}
	_ = response.WriteJSON(w, http.StatusOK, body)
}
