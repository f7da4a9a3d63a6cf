package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteErrorStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithDetail(rec, ErrCodeDeliveryTerminal, "delivery already resolved", "status", "succeeded")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var body struct {
		Error struct {
			Code      string                 `json:"code"`
			Message   string                 `json:"message"`
			Retryable bool                   `json:"retryable"`
			Details   map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Error.Code != string(ErrCodeDeliveryTerminal) {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if body.Error.Retryable {
		t.Fatal("terminal delivery error marked retryable")
	}
	if body.Error.Details["status"] != "succeeded" {
		t.Fatalf("details = %v", body.Error.Details)
	}
}

func TestRetryableFlagFollowsCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSimpleError(rec, ErrCodeDatabaseError, "storage unavailable")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["error"]["retryable"] != true {
		t.Fatal("database error should be retryable")
	}
}
