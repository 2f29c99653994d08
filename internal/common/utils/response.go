// internal/common/utils/response.go
// Standardized API responses ensure consistency across all endpoints

package utils

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

// Response is the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	RespondWithJSON(w, statusCode, Response{Success: true, Data: data})
}

// ErrorResponse sends an error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	RespondWithJSON(w, statusCode, Response{Success: false, Error: message})
}

// ErrorResponseWithDetails sends an error response carrying structured details
func ErrorResponseWithDetails(w http.ResponseWriter, message string, details interface{}, statusCode int) {
	RespondWithJSON(w, statusCode, Response{Success: false, Error: message, Details: details})
}

// RespondWithJSON sends a JSON response with the specified status code and payload
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"Error marshaling JSON"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
