package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/imagestore"
)

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse(9400, msg))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse(9401, "Authentication required"))
}

// UnknownUser writes a 401 error response for an unresolvable caller.
func UnknownUser(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse(9401, "User not found"))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse(9404, msg))
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusConflict, ErrorResponse(9409, msg))
}

// TooLarge writes a 413 error response.
func TooLarge(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(9413, msg))
}

// InternalError writes a 500 error response. The cause is logged, not sent.
func InternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("request failed")
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse(9500, "Internal server error"))
}

// WriteError maps an engine error to its status code.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, imagestore.ErrNotFound):
		NotFound(w, "Image not found")
	case errors.Is(err, imagestore.ErrUserNotFound):
		UnknownUser(w)
	case errors.Is(err, imagestore.ErrNameTaken), errors.Is(err, database.ErrDuplicateName):
		Conflict(w, err.Error())
	case errors.Is(err, imagestore.ErrInvalidArgument):
		BadRequest(w, err.Error())
	default:
		InternalError(w, err)
	}
}
