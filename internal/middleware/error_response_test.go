package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// TestWriteErrorResponse は統一エラーフォーマットのJSONが書き込まれることを検証する。
func TestWriteErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, http.StatusNotFound, model.NewResourceNotFoundError("res-1"))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Code != model.ErrCodeResourceNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeResourceNotFound)
	}
	if body.Message == "" || body.Category == "" || body.Action == "" {
		t.Errorf("incomplete error body: %+v", body)
	}
}

// TestWriteInternalServerError は内部エラーの一般メッセージを検証する。
func TestWriteInternalServerError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteInternalServerError(rr)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}
