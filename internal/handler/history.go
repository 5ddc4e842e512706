package handler

import (
	"net/http"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/middleware"
	"github.com/tastebuds/room-server-go/internal/service"
)

type HistoryHandler struct {
	historyService *service.HistoryService
}

func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// GET /v1/history
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	entries, err := h.historyService.List(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
