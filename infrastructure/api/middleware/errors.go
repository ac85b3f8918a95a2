package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/librarianhq/librarian/domain/library"
)

// SuccessEnvelope is the JSON shape every non-error endpoint returns.
type SuccessEnvelope struct {
	Data      any    `json:"data"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	RequestID string `json:"requestId"`
}

// ErrorEnvelope is the JSON shape error responses return.
type ErrorEnvelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	RequestID string `json:"requestId"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes data inside the standard success envelope.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any, message string) {
	if message == "" {
		message = "Operation successful"
	}
	WriteJSON(w, http.StatusOK, SuccessEnvelope{
		Data:      data,
		Message:   message,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// WriteError maps a domain error onto an HTTP status and writes the
// error envelope. Business errors are logged at info level; anything
// unexpected is logged at error level and masked with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	requestID := middleware.GetReqID(r.Context())

	status, kind := classify(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", requestID,
			"path", r.URL.Path,
			"error", message,
		)
		message = "internal server error"
	} else {
		logger.Info("request rejected",
			"request_id", requestID,
			"path", r.URL.Path,
			"error", message,
		)
	}

	WriteJSON(w, status, ErrorEnvelope{
		Error:     kind,
		Message:   message,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	})
}

func classify(err error) (status int, kind string) {
	switch {
	case errors.Is(err, library.ErrValidation):
		return http.StatusUnprocessableEntity, "ValidationError"
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound, "NotFoundError"
	case errors.Is(err, library.ErrAlreadyExists):
		return http.StatusConflict, "AlreadyExistsError"
	case errors.Is(err, library.ErrService):
		return http.StatusInternalServerError, "ServiceError"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}
