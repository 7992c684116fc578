package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

// writeErr maps service errors onto status codes. Anything unrecognized is
// logged and reported as a generic 500.
func writeErr(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		utils.Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrForbidden):
		utils.Error(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		utils.Error(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).
			Str("request_id", utils.RequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		utils.Error(w, http.StatusInternalServerError, "internal error")
	}
}
