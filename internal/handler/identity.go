package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tastebuds/room-server-go/internal/service"
)

type IdentityHandler struct {
	identityService *service.IdentityService
}

func NewIdentityHandler(identityService *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identityService: identityService}
}

func (h *IdentityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/guest", h.CreateGuest)

	return r
}

type createGuestRequest struct {
	DisplayName string `json:"displayName"`
}

// POST /v1/identity/guest
func (h *IdentityHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req createGuestRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	result, err := h.identityService.CreateGuest(r.Context(), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
