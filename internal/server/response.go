package server

import (
	"encoding/json"
	"net/http"

	"github.com/vico-ai/vico/internal/logging"
)

// Error codes used in ErrorResponse.Error.Code.
const (
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeNotFound         = "not_found"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeProviderError    = "provider_error"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternalError    = "internal_error"
)

// ErrorResponse is the JSON body written for any non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code alongside the human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("server: encode response body failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	body := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	for k, v := range details {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeSuccess(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, ErrCodeInternalError, "not implemented")
}
