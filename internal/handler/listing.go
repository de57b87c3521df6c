package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/service"
)

// multipartMemory is how much of a multipart body is held in memory before
// the rest spills to temporary files.
const multipartMemory = 8 << 20

// ListingHandler serves listings, their photos and their closings.
//
// HANDLER RESPONSIBILITIES:
//   - parse path params, query strings, JSON and multipart bodies
//   - call ListingService with plain values
//   - map the result (or the error) to a response
//
// The handler never decides who may edit what; that lives in the service,
// behind auth.CanModify.
type ListingHandler struct {
	listings  *service.ListingService
	maxUpload int64
	logger    *slog.Logger
}

// NewListingHandler creates a ListingHandler. maxUpload caps a whole
// multipart request body.
func NewListingHandler(listings *service.ListingService, maxUpload int64, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, maxUpload: maxUpload, logger: logger}
}

// flexString accepts a JSON string or number. The client sends price as
// "$549,000" from the form and as 549000 from the edit dialog.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// ptr returns nil for an absent field.
func (f *flexString) ptr() *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}

type listingRequest struct {
	Title        flexString `json:"title"`
	Price        flexString `json:"price"`
	Address      flexString `json:"address"`
	Beds         flexString `json:"beds"`
	Baths        flexString `json:"baths"`
	Sqft         flexString `json:"sqft"`
	PropertyType flexString `json:"propertyType"`
	Description  flexString `json:"description"`
}

func (l listingRequest) input() service.ListingInput {
	return service.ListingInput{
		Title:        string(l.Title),
		Price:        string(l.Price),
		Address:      string(l.Address),
		Beds:         string(l.Beds),
		Baths:        string(l.Baths),
		Sqft:         string(l.Sqft),
		PropertyType: string(l.PropertyType),
		Description:  string(l.Description),
	}
}

type listingPatchRequest struct {
	Title        *flexString `json:"title"`
	Price        *flexString `json:"price"`
	Address      *flexString `json:"address"`
	Beds         *flexString `json:"beds"`
	Baths        *flexString `json:"baths"`
	Sqft         *flexString `json:"sqft"`
	PropertyType *flexString `json:"propertyType"`
	Description  *flexString `json:"description"`
}

func (p listingPatchRequest) patch() service.ListingPatch {
	return service.ListingPatch{
		Title:        p.Title.ptr(),
		Price:        p.Price.ptr(),
		Address:      p.Address.ptr(),
		Beds:         p.Beds.ptr(),
		Baths:        p.Baths.ptr(),
		Sqft:         p.Sqft.ptr(),
		PropertyType: p.PropertyType.ptr(),
		Description:  p.Description.ptr(),
	}
}

type createListingResponse struct {
	ID      string         `json:"id"`
	Listing *model.Listing `json:"listing"`
}

// HandleList returns active listings.
//
// HTTP: GET /api/listings?minPrice=&maxPrice=&beds=&baths=&propertyType=
//
// All filters are optional and inclusive. propertyType=any is the same as
// leaving it out.
func (h *ListingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listings, err := h.listings.List(r.Context(), service.ListingQuery{
		MinPrice:     q.Get("minPrice"),
		MaxPrice:     q.Get("maxPrice"),
		Beds:         q.Get("beds"),
		Baths:        q.Get("baths"),
		PropertyType: q.Get("propertyType"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleGet returns one listing of any status.
//
// HTTP: GET /api/listings/{id}
func (h *ListingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleCreate stores a new listing.
//
// HTTP: POST /api/listings
// Auth: agent or manager
//
// TWO BODY FORMATS:
//   - multipart/form-data: text fields plus up to 5 files under "images"
//   - application/json: the same fields, no photos (add them later)
//
// RESPONSE: 201 {"id": "...", "listing": {...}}
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var (
		in      service.ListingInput
		uploads []service.ImageUpload
	)

	if isMultipart(r) {
		form, err := h.parseMultipart(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer form.RemoveAll()

		in = service.ListingInput{
			Title:        r.FormValue("title"),
			Price:        r.FormValue("price"),
			Address:      r.FormValue("address"),
			Beds:         r.FormValue("beds"),
			Baths:        r.FormValue("baths"),
			Sqft:         r.FormValue("sqft"),
			PropertyType: r.FormValue("propertyType"),
			Description:  r.FormValue("description"),
		}

		files := form.File["images"]
		if len(files) > model.MaxImagesPerListing {
			writeError(w, apperror.ValidationFailed("images",
				fmt.Sprintf("Maximum of %d images allowed per listing", model.MaxImagesPerListing)))
			return
		}
		for _, fh := range files {
			u, err := readUpload(fh)
			if err != nil {
				writeError(w, err)
				return
			}
			uploads = append(uploads, u)
		}
	} else {
		var req listingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		in = req.input()
	}

	l, err := h.listings.Create(r.Context(), identity(r), in, uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createListingResponse{ID: l.ID, Listing: l})
}

// HandleUpdate applies a partial update. Fields left out are unchanged.
//
// HTTP: PUT /api/listings/{id}
// Auth: owner or manager
func (h *ListingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req listingPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	l, err := h.listings.Update(r.Context(), identity(r), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleSetStatus switches a listing between active and inactive.
//
// HTTP: PUT /api/listings/{id}/status
// REQUEST BODY: {"status": "active"|"inactive"}
func (h *ListingHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	l, err := h.listings.SetStatus(r.Context(), identity(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleDelete removes a listing with its photos, bookmarks and closing.
//
// HTTP: DELETE /api/listings/{id}
// Auth: owner only
func (h *ListingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.listings.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Listing removed"})
}

type closeRequest struct {
	ClosingDate     string     `json:"closingDate"`
	SellingPrice    flexString `json:"sellingPrice"`
	SellingAgentID  string     `json:"sellingAgentId"`
	BuyingAgentID   string     `json:"buyingAgentId"`
	SellingAgentFee flexString `json:"sellingAgentFee"`
	BuyingAgentFee  flexString `json:"buyingAgentFee"`
	Notes           string     `json:"notes"`
}

// HandleClose records the sale of a listing.
//
// HTTP: POST /api/listings/{id}/close
// Auth: agent or manager who may modify the listing
// RESPONSE: 201 with the closing, commissions included
func (h *ListingHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.listings.Close(r.Context(), identity(r), chi.URLParam(r, "id"), service.CloseInput{
		ClosingDate:     req.ClosingDate,
		SellingPrice:    string(req.SellingPrice),
		SellingAgentID:  req.SellingAgentID,
		BuyingAgentID:   req.BuyingAgentID,
		SellingAgentFee: string(req.SellingAgentFee),
		BuyingAgentFee:  string(req.BuyingAgentFee),
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleGetClosing returns the sale record of a closed listing.
//
// HTTP: GET /api/listings/{id}/closing
func (h *ListingHandler) HandleGetClosing(w http.ResponseWriter, r *http.Request) {
	c, err := h.listings.GetClosing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// =========================================================================
// MULTIPART HELPERS
// =========================================================================

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// parseMultipart bounds the body at maxUpload and parses it.
func (h *ListingHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.logger.Warn("invalid multipart body", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("images",
			fmt.Sprintf("Upload must be a valid form of at most %d MB", h.maxUpload>>20))
	}
	return r.MultipartForm, nil
}

// readUpload loads one file. Anything past MaxImageBytes is cut off; the
// service rejects the oversize result.
func readUpload(fh *multipart.FileHeader) (service.ImageUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return service.ImageUpload{}, fmt.Errorf("handler: opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, service.MaxImageBytes+1))
	if err != nil {
		return service.ImageUpload{}, fmt.Errorf("handler: reading upload %s: %w", fh.Filename, err)
	}
	return service.ImageUpload{Data: data, MimeType: fh.Header.Get("Content-Type")}, nil
}
