package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go-cms-app/internal/logger"
	"go-cms-app/internal/service"
)

// AppError is an error with an explicit status code and client-facing message,
// used for request-parsing failures in handlers.
type AppError struct {
	Err     error
	Message string
	Code    int
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// BadRequest wraps a malformed-request error.
func BadRequest(err error, msg string) *AppError {
	return &AppError{Err: err, Message: msg, Code: http.StatusBadRequest}
}

// AppHandler is a handler that reports failure by returning an error.
type AppHandler func(http.ResponseWriter, *http.Request) error

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Error turns an AppHandler into an http.Handler, mapping returned errors to
// JSON responses and recovering panics.
func Error(log logger.Logger) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}()

			err := next(w, r)
			if err == nil {
				return
			}
			code, body := classify(err)
			if code >= http.StatusInternalServerError {
				log.With(map[string]interface{}{"method": r.Method, "path": r.URL.Path}).Error(err, "Request failed")
			} else {
				log.Debug(fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
			}
			WriteJSON(w, code, body)
		})
	}
}

// classify maps an error to a status code and the body the client sees.
// Internal failures expose only their kind.
func classify(err error) (int, ErrorBody) {
	var appErr *AppError
	var validation *service.ValidationError
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &appErr):
		return appErr.Code, ErrorBody{Error: appErr.Message}
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, ErrorBody{Error: validation.Message, Field: validation.Field}
	case errors.As(err, &conflict):
		return http.StatusConflict, ErrorBody{Error: conflict.Message}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: "not found"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorBody{Error: service.ErrInvalidCredentials.Error()}
	case errors.Is(err, service.ErrInternalConsistency):
		return http.StatusInternalServerError, ErrorBody{Error: "internal consistency error"}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: http.StatusText(http.StatusInternalServerError)}
	}
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody with msg.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorBody{Error: msg})
}
