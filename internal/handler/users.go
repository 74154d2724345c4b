package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/leca/image-vault/internal/api"
	"github.com/leca/image-vault/internal/database"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

type createUserRequest struct {
	Username string `json:"username"`
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if !usernamePattern.MatchString(body.Username) {
		api.BadRequest(w, "username must be 1-64 letters, digits, '.', '_' or '-'")
		return
	}

	user, err := h.DB.CreateUser(r.Context(), body.Username)
	if errors.Is(err, database.ErrDuplicateName) {
		api.Conflict(w, "username already taken")
		return
	}
	if err != nil {
		api.InternalError(w, err)
		return
	}
	h.Logger.Info().Str("username", user.Username).Msg("user created")
	api.WriteJSON(w, http.StatusCreated, api.SuccessResponse(user))
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(map[string]string{"status": "ok"}))
}
