package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/middleware"
	"github.com/tastebuds/room-server-go/internal/service"
	"github.com/tastebuds/room-server-go/internal/sse"
)

// EventsHandler streams full room snapshots over SSE. Every committed
// mutation triggers a fresh snapshot read, so subscribers always converge
// on the latest state even when intermediate writes coalesce.
type EventsHandler struct {
	broker      *sse.Broker
	roomService *service.RoomService
}

func NewEventsHandler(broker *sse.Broker, roomService *service.RoomService) *EventsHandler {
	return &EventsHandler{
		broker:      broker,
		roomService: roomService,
	}
}

// GET /v1/rooms/{code}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	// Resolve the room before committing to a stream so that an unknown
	// code is a plain 404, not a broken event source.
	snap, err := h.roomService.Snapshot(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(snap.ID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("roomId", snap.ID).
		Str("participantId", identity.ID).
		Msg("sse connection established")

	// Initial delivery: the subscriber gets the current state immediately,
	// then a full snapshot again after every change.
	if err := h.sendSnapshot(w, flusher, newRoomResponse(snap, identity.ID)); err != nil {
		return
	}

	ctx := r.Context()

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("roomId", snap.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("roomId", snap.ID).
				Msg("sse connection closed by broker")
			return

		case <-client.Events:
			latest, err := h.roomService.Snapshot(ctx, snap.ID)
			if err != nil {
				// The room is gone or unreachable: report and terminate,
				// never fall back to serving a stale snapshot.
				h.sendError(w, flusher, err)
				return
			}
			if err := h.sendSnapshot(w, flusher, newRoomResponse(latest, identity.ID)); err != nil {
				log.Error().Err(err).Msg("failed to send room event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("roomId", snap.ID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendSnapshot(w http.ResponseWriter, flusher http.Flusher, payload roomResponse) error {
	return h.sendEvent(w, flusher, "room", payload)
}

func (h *EventsHandler) sendError(w http.ResponseWriter, flusher http.Flusher, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("Room became unreachable")
	}
	if sendErr := h.sendEvent(w, flusher, "error", map[string]any{
		"code":    appErr.Code,
		"message": appErr.Message,
	}); sendErr != nil {
		log.Debug().Err(sendErr).Msg("failed to send error event")
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
