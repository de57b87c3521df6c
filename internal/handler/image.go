package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
)

// HandleListImages returns photo metadata in display order. No bytes.
//
// HTTP: GET /api/listings/{id}/images
func (h *ListingHandler) HandleListImages(w http.ResponseWriter, r *http.Request) {
	imgs, err := h.listings.ListImages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imgs)
}

// HandlePrimaryImage streams the cover photo.
//
// HTTP: GET /api/listings/{id}/image
func (h *ListingHandler) HandlePrimaryImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.listings.PrimaryImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	// The cover can change under the same URL.
	w.Header().Set("Cache-Control", "no-cache")
	writeImage(w, img)
}

// HandleGetImage streams one photo.
//
// HTTP: GET /api/listings/{id}/images/{imageId}
func (h *ListingHandler) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.listings.GetImage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeImage(w, img)
}

// HandleAddImage uploads one more photo.
//
// HTTP: POST /api/listings/{id}/images
// Auth: owner or manager
// REQUEST: multipart/form-data with a single file under "image"
// RESPONSE: 201 with the new image's metadata
func (h *ListingHandler) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeError(w, apperror.ValidationFailed("image", "Upload must be multipart/form-data"))
		return
	}
	form, err := h.parseMultipart(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer form.RemoveAll()

	files := form.File["image"]
	if len(files) == 0 {
		writeError(w, apperror.ValidationFailed("image", "No image uploaded"))
		return
	}
	upload, err := readUpload(files[0])
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := h.listings.AddImage(r.Context(), identity(r), chi.URLParam(r, "id"), upload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// HandleSetPrimary makes a photo the cover.
//
// HTTP: PUT /api/listings/{id}/images/{imageId}/primary
// Auth: owner or manager
func (h *ListingHandler) HandleSetPrimary(w http.ResponseWriter, r *http.Request) {
	err := h.listings.SetPrimary(r.Context(), identity(r), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Primary image updated"})
}

// HandleDeleteImage removes a photo. The last one cannot be removed.
//
// HTTP: DELETE /api/listings/{id}/images/{imageId}
// Auth: owner or manager
func (h *ListingHandler) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	err := h.listings.DeleteImage(r.Context(), identity(r), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Image removed"})
}

// writeImage sends the stored bytes with the stored content type.
func writeImage(w http.ResponseWriter, img *model.ListingImage) {
	if img == nil || len(img.Data) == 0 {
		writeError(w, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Image not found"})
		return
	}
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
