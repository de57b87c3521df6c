package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/service"
)

// UserHandler serves the dashboard (profile, bookmarks, activity) and the
// manager-only user administration.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleGetProfile returns the caller's profile.
//
// HTTP: GET /api/users/profile
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetProfile(r.Context(), identity(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleUpdateProfile changes the caller's names.
//
// HTTP: PUT /api/users/profile
// REQUEST BODY: {"firstName"?, "lastName"?}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p service.ProfileUpdate
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), identity(r), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleListSaved returns the caller's bookmarks, newest first.
//
// HTTP: GET /api/users/saved-listings
func (h *UserHandler) HandleListSaved(w http.ResponseWriter, r *http.Request) {
	entries, err := h.users.ListSavedListings(r.Context(), identity(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type saveListingRequest struct {
	ListingID string `json:"listingId"`
}

type saveListingResponse struct {
	ID string `json:"id"`
}

// HandleSaveListing bookmarks a listing.
//
// HTTP: POST /api/users/saved-listings
// REQUEST BODY: {"listingId": "..."}
// RESPONSE:     201 {"id": "<bookmark id>"}
func (h *UserHandler) HandleSaveListing(w http.ResponseWriter, r *http.Request) {
	var req saveListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	sl, err := h.users.SaveListing(r.Context(), identity(r), req.ListingID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveListingResponse{ID: sl.ID})
}

// HandleActivity returns the caller's recent activity.
//
// HTTP: GET /api/users/activity?limit=10
func (h *UserHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a whole number"))
			return
		}
		limit = n
	}

	acts, err := h.users.ListActivity(r.Context(), identity(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

// HandleListUsers returns every account.
//
// HTTP: GET /api/users
// Auth: manager
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type roleRequest struct {
	Role string `json:"role"`
}

// HandleUpdateRole changes a user's role.
//
// HTTP: PUT /api/users/{id}/role
// Auth: manager
// REQUEST BODY: {"role": "default"|"agent"|"manager"}
func (h *UserHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.users.UpdateUserRole(r.Context(), identity(r), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleListAgents returns the users who can be named on a closing.
//
// HTTP: GET /api/agents
func (h *UserHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.users.ListAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}
