package proof

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/blob"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/respond"
)

// multipartOverhead leaves room for the form envelope around the file.
const multipartOverhead = 64 << 10

type Handler struct {
	blobs    *blob.FileStore
	maxBytes int64
}

func NewHandler(blobs *blob.FileStore, maxBytes int64) *Handler {
	return &Handler{blobs: blobs, maxBytes: maxBytes}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.upload)
	r.With(auth.Require(auth.RoleAdmin)).Get("/{name}", h.serve)
}

type uploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, blob.ErrTooLarge)
			return
		}

		respond.BadRequest(w, "missing file field")

		return
	}
	defer file.Close()

	obj, err := h.blobs.Put(r.Context(), file)
	if err != nil {
		respond.Error(w, err)
		return
	}

	slog.Info("proof uploaded", "name", obj.Name, "content_type", obj.ContentType, "size", obj.Size)

	respond.JSON(w, http.StatusCreated, uploadResponse{
		URL:         obj.URL,
		ContentType: obj.ContentType,
		Size:        obj.Size,
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	f, contentType, err := h.blobs.Open(name)
	if err != nil {
		respond.Error(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, time.Time{}, f)
}

