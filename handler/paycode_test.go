package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/inhousecard/paycore/infra/response"
	"github.com/inhousecard/paycore/pixcode"
)

func TestHandleGenerate(t *testing.T) {
	h := NewPaycodeHandler(validator.New())

	body := `{"beneficiary_key":"user@bank.com","beneficiary_name":"José da Silva","amount":"12.3"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/paycode", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false, error = %s", resp.Error)
	}

	data := resp.Data.(map[string]any)
	code, _ := data["code"].(string)
	if !strings.HasPrefix(code, "000201") {
		t.Errorf("code %q does not start with the fixed header", code)
	}
	if data["beneficiary_name"] != "JosedaSilva" {
		t.Errorf("beneficiary_name = %v, want JosedaSilva", data["beneficiary_name"])
	}
	if data["amount"] != "13.00" {
		t.Errorf("amount = %v, want 13.00", data["amount"])
	}

	// The handler is a thin wrapper; the code matches the codec output.
	want := pixcode.Payload{
		BeneficiaryKey:  "user@bank.com",
		BeneficiaryName: "José da Silva",
		Amount:          "12.3",
	}.Generate()
	if code != want {
		t.Errorf("code = %q, want %q", code, want)
	}
}

func TestHandleGenerateValidation(t *testing.T) {
	h := NewPaycodeHandler(validator.New())

	tests := []struct {
		name string
		body string
	}{
		{"missing key", `{"beneficiary_name":"Name","amount":"10"}`},
		{"missing name", `{"beneficiary_key":"key","amount":"10"}`},
		{"missing amount", `{"beneficiary_key":"key","beneficiary_name":"Name"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/paycode", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.HandleGenerate(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleGenerateInvalidJSON(t *testing.T) {
	h := NewPaycodeHandler(validator.New())

	req := httptest.NewRequest(http.MethodPost, "/v1/paycode", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
