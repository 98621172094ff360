// Package middleware provides HTTP middleware and response helpers for the API.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/rental-marketplace/backend/internal/apperror"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// SuccessResponse wraps the data of a successful request.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// WriteJSON writes data inside the success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	WriteRaw(w, status, SuccessResponse{Success: true, Data: data})
}

// WriteRaw writes body as JSON without the envelope.
func WriteRaw(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

// WriteError translates err into the error envelope. Unclassified errors
// become 500s that still carry the underlying message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.AsAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Default().Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	WriteRaw(w, appErr.HTTPStatus, ErrorResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

// ErrorRecovery recovers from panics and answers with a 500.
func ErrorRecovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					WriteRaw(w, http.StatusInternalServerError, ErrorResponse{
						Error: "An unexpected error occurred",
						Code:  apperror.CodeInternal,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
