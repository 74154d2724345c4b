package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leca/image-vault/internal/api"
)

// GetImageBlob handles GET /images/{id} -- the bytes of the current version.
func (h *Handler) GetImageBlob(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	data, err := h.Images.GetOne(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if data == nil {
		api.NotFound(w, "Image not found")
		return
	}

	w.Header().Set("Content-Type", data.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data.Data); err != nil {
		h.Logger.Warn().Err(err).Msg("failed to write image response")
	}
}
