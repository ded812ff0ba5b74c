package web

// errors.go provides unified error response handling for the API.
//
// Every error is:
//   - Logged with full technical detail and the request ID (server-side)
//   - Returned as JSON with a user-friendly message, action and code
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. core.MapError picks the user message and HTTP status
//  4. Technical error + request context is logged
//  5. ErrorResponse is written

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/JonMunkholm/chemequip/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped JSON error response.
// Client errors log at warn, everything else at error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := userMsg.Status

	logger := logging.FromContext(r.Context())
	logger.Log(r.Context(), logging.LevelForStatus(status), "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"mapped", core.IsUserFacing(err),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   errorText(err, userMsg),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// errorText is the "error" field. Ingestion errors are safe to echo since
// they only describe the caller's own file; anything else is replaced by
// the mapped message so driver details never leave the server.
func errorText(err error, msg core.UserMessage) string {
	var (
		schemaErr *core.SchemaError
		parseErr  *core.ParseError
		rowErr    *core.RowError
		valErr    core.ValidationError
	)
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &parseErr), errors.As(err, &rowErr):
		return "Failed to parse CSV: " + err.Error()
	case errors.As(err, &valErr):
		return valErr.Error()
	}
	return msg.Message
}
