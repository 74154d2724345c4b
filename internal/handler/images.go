package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leca/image-vault/internal/api"
	"github.com/leca/image-vault/internal/imageproc"
	"github.com/leca/image-vault/internal/imagestore"
	"github.com/leca/image-vault/internal/model"
)

const (
	defaultPageSize = 10
	multipartMemory = 10 << 20
)

// UploadImages handles POST /images -- one or more multipart "file" parts.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.TooLarge(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		api.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		api.BadRequest(w, "missing required field: file")
		return
	}

	uploads := make([]model.UploadImage, 0, len(parts))
	for _, part := range parts {
		img, err := readUpload(part)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		uploads = append(uploads, img)
	}

	results, err := h.Images.Upload(r.Context(), user, uploads...)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(results))
}

// readUpload reads one multipart part and resolves its type: the part's
// MIME header first, then the file extension, then the bytes themselves.
func readUpload(part *multipart.FileHeader) (model.UploadImage, error) {
	f, err := part.Open()
	if err != nil {
		return model.UploadImage{}, fmt.Errorf("file %s: %w", part.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.UploadImage{}, fmt.Errorf("file %s: %w", part.Filename, err)
	}

	declared := model.ContentTypeFromMIME(part.Header.Get("Content-Type"))
	if !declared.IsKnown() {
		declared = model.ContentTypeFromExtension(path.Ext(part.Filename))
	}
	ct, dims, err := imageproc.Inspect(data, declared)
	if err != nil {
		return model.UploadImage{}, fmt.Errorf("file %s: %w", part.Filename, err)
	}
	return model.UploadImage{
		Name:        part.Filename,
		ContentType: ct,
		Data:        data,
		Dimensions:  dims,
	}, nil
}

// ListImages handles GET /images?page=&limit=.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	page := 1
	limit := defaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = max(1, min(l, imagestore.MaxPageSize))
		}
	}

	list, err := h.Images.GetMetadataAll(r.Context(), user, page, limit)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	info := api.ResultInfo{
		Page:       page,
		PerPage:    limit,
		Count:      len(list.Images),
		TotalCount: list.Total,
		HasMore:    list.HasMore,
	}
	api.WriteJSON(w, http.StatusOK, api.PaginatedResponse(list, info))
}

// GetImageMeta handles GET /images/{id}/meta.
func (h *Handler) GetImageMeta(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	img, err := h.Images.GetMetadataOne(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if img == nil {
		api.NotFound(w, "Image not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(img))
}

// ListImageVersions handles GET /images/{id}/versions.
func (h *Handler) ListImageVersions(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	versions, err := h.Images.ListVersions(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if versions == nil {
		versions = []*model.ImageVersion{}
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(versions))
}

// DeleteImage handles DELETE /images/{id} and POST /images/{id}/delete.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	if err := h.Images.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(struct{}{}))
}

type renameRequest struct {
	ImageName string `json:"image_name"`
}

type renameResult struct {
	Updated bool   `json:"updated"`
	Name    string `json:"name,omitempty"`
}

// RenameImage handles POST /images/{id}/rename.
func (h *Handler) RenameImage(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	var body renameRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if body.ImageName == "" {
		api.BadRequest(w, "missing required field: image_name")
		return
	}

	name, err := h.Images.Rename(r.Context(), user, chi.URLParam(r, "id"), body.ImageName)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(renameResult{Updated: name != "", Name: name}))
}

type moveResult struct {
	Updated bool   `json:"updated"`
	Version string `json:"version,omitempty"`
}

// RevertImage handles POST /images/{id}/revert.
func (h *Handler) RevertImage(w http.ResponseWriter, r *http.Request) {
	h.moveVersion(w, r, h.Images.Revert)
}

// RestoreImage handles POST /images/{id}/restore.
func (h *Handler) RestoreImage(w http.ResponseWriter, r *http.Request) {
	h.moveVersion(w, r, h.Images.Restore)
}

func (h *Handler) moveVersion(w http.ResponseWriter, r *http.Request,
	move func(ctx context.Context, user *model.UserInfo, id string) (string, error)) {
	user := api.GetUser(r.Context())

	version, err := move(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(moveResult{Updated: version != "", Version: version}))
}

// GetOrphans handles GET /images/orphans.
func (h *Handler) GetOrphans(w http.ResponseWriter, r *http.Request) {
	user := api.GetUser(r.Context())

	rec, err := h.Images.Reconcile(r.Context(), user)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(rec))
}
