package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/pixcode"
)

// PaycodeRequest is the input for generating a scan-to-pay code.
type PaycodeRequest struct {
	BeneficiaryKey  string `json:"beneficiary_key" validate:"required"`
	BeneficiaryName string `json:"beneficiary_name" validate:"required"`
	Amount          string `json:"amount" validate:"required"`
}

// PaycodeHandler generates deterministic scan-to-pay payloads. The
// output is an opaque string for QR rendering or copy-to-clipboard; the
// handler has no storage or network dependency.
type PaycodeHandler struct {
	validator *validator.Validate
}

// NewPaycodeHandler creates a new paycode handler
func NewPaycodeHandler(validate *validator.Validate) *PaycodeHandler {
	return &PaycodeHandler{validator: validate}
}

// HandleGenerate processes POST /v1/paycode.
func (h *PaycodeHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req PaycodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	payload := pixcode.Payload{
		BeneficiaryKey:  req.BeneficiaryKey,
		BeneficiaryName: req.BeneficiaryName,
		Amount:          req.Amount,
	}

	response.Success(w, http.StatusOK, "Payment code generated", map[string]string{
		"code":             payload.Generate(),
		"beneficiary_name": pixcode.NormalizeName(req.BeneficiaryName),
		"amount":           pixcode.NormalizeAmount(req.Amount),
	})
}
