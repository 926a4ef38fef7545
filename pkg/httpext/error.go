package httpext

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorTypeRateLimit marks an error body as a rate limit. Clients of the
// gateway classify on it the same way the dispatcher does upstream.
const ErrorTypeRateLimit = "rateLimit"

// ErrorResponse represents a standardised JSON error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Type             string `json:"type,omitempty"`
}

// JsonError writes a JSON error response with the specified status code
func JsonError(w http.ResponseWriter, message string, code int) {
	JsonErrorWithDetails(w, code, ErrorResponse{Error: message})
}

// JsonRateLimitError writes a 429 whose body carries type "rateLimit".
func JsonRateLimitError(w http.ResponseWriter, message string) {
	JsonErrorWithDetails(w, http.StatusTooManyRequests, ErrorResponse{
		Error: message,
		Type:  ErrorTypeRateLimit,
	})
}

// JsonErrorWithDetails writes a detailed JSON error response
func JsonErrorWithDetails(w http.ResponseWriter, code int, errResp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		log.Error().Err(err).Int("status", code).Msg("Failed to encode error response")
		return
	}
}
