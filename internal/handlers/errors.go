package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"riddlehunt/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusFor maps engine error kinds onto HTTP statuses
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrUnprocessable):
		return http.StatusUnprocessableEntity, "unprocessable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Error: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		resp.Message = "internal server error"
	}
	respondJSON(w, status, resp)
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="riddlehunt"`)
	respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: message})
}
