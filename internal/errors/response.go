package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON error body returned by the admin API. The code is
// machine readable so clients can branch without parsing the message, and the
// retryable flag tells them whether repeating the request can help.
type ErrorResponse struct {
	Error struct {
		Code      ErrorCode              `json:"code"`
		Message   string                 `json:"message"`
		Retryable bool                   `json:"retryable"`
		Details   map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// NewErrorResponse builds an error body for the given code.
func NewErrorResponse(code ErrorCode, message string, details map[string]interface{}) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Retryable = code.IsRetryable()
	resp.Error.Details = details
	return resp
}

// WriteJSON writes the response with the status implied by its code.
func (e ErrorResponse) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Error.Code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(e)
}

// WriteError builds and writes an error response in one call.
func WriteError(w http.ResponseWriter, code ErrorCode, message string, details map[string]interface{}) {
	NewErrorResponse(code, message, details).WriteJSON(w)
}

// WriteSimpleError writes an error with no detail fields.
func WriteSimpleError(w http.ResponseWriter, code ErrorCode, message string) {
	WriteError(w, code, message, nil)
}

// WriteErrorWithDetail writes an error carrying a single detail field.
func WriteErrorWithDetail(w http.ResponseWriter, code ErrorCode, message string, key string, value interface{}) {
	WriteError(w, code, message, map[string]interface{}{key: value})
}
