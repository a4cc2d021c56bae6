package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cheques/internal/core"
	"cheques/internal/export"
	"cheques/internal/filter"
	"cheques/internal/log"
	"cheques/internal/sheets"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps an error to its HTTP status and error kind.
func statusFor(err error) (int, string) {
	var appErr *sheets.ApplicationError
	var transportErr *sheets.TransportError
	switch {
	case errors.Is(err, sheets.ErrInvalidRequest),
		errors.Is(err, filter.ErrUnknownKey),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrValidation), errors.Is(err, export.ErrNoData):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case errors.As(err, &appErr):
		return http.StatusUnprocessableEntity, log.ErrorTypeRemote
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, log.ErrorTypeNetwork
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}

// writeError logs err against the request and answers with its mapped
// status. Remote rejections are shown with the remote message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := statusFor(err)
	msg := err.Error()

	var appErr *sheets.ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithOperation(op).WithError(err)
	fields["error_type"] = kind
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}
