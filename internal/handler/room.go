package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/middleware"
	"github.com/tastebuds/room-server-go/internal/model"
	"github.com/tastebuds/room-server-go/internal/service"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

func (h *RoomHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{code}", h.Get)
	r.Post("/{code}/join", h.Join)
	r.Post("/{code}/swipes", h.Swipe)
	r.Post("/{code}/winner", h.SelectWinner)

	return r
}

// roomResponse pairs the shared snapshot with the caller's derived view.
type roomResponse struct {
	Room *model.RoomSnapshot `json:"room"`
	View service.View        `json:"view"`
}

func newRoomResponse(snap *model.RoomSnapshot, participantID string) roomResponse {
	return roomResponse{
		Room: snap,
		View: service.ComputeView(snap, participantID),
	}
}

type createRoomRequest struct {
	Candidates []model.Candidate `json:"candidates"`
}

// POST /v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req createRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := h.roomService.Create(r.Context(), identity, req.Candidates)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newRoomResponse(snap, identity.ID))
}

// GET /v1/rooms/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	snap, err := h.roomService.Snapshot(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRoomResponse(snap, identity.ID))
}

// POST /v1/rooms/{code}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	snap, err := h.roomService.Join(r.Context(), identity, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRoomResponse(snap, identity.ID))
}

type swipeRequest struct {
	CandidateID string         `json:"candidateId"`
	Decision    model.Decision `json:"decision"`
}

// POST /v1/rooms/{code}/swipes
func (h *RoomHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req swipeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := h.roomService.RecordSwipe(r.Context(), identity, chi.URLParam(r, "code"), req.CandidateID, req.Decision)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRoomResponse(snap, identity.ID))
}

// POST /v1/rooms/{code}/winner
func (h *RoomHandler) SelectWinner(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	snap, err := h.roomService.SelectWinner(r.Context(), identity, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRoomResponse(snap, identity.ID))
}
