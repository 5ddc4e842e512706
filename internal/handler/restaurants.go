package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/places"
)

// RestaurantsHandler proxies the candidate source. The client fetches a
// list here and passes it verbatim to room creation.
type RestaurantsHandler struct {
	placesClient *places.Client
}

func NewRestaurantsHandler(placesClient *places.Client) *RestaurantsHandler {
	return &RestaurantsHandler{placesClient: placesClient}
}

// GET /v1/restaurants?lat=&lng=&radius=
func (h *RestaurantsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("lat", "must be a number"))
		return
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("lng", "must be a number"))
		return
	}

	radius := 0
	if raw := r.URL.Query().Get("radius"); raw != "" {
		radius, err = strconv.Atoi(raw)
		if err != nil || radius < 0 {
			writeError(w, apperrors.InvalidInput("radius", "must be a non-negative integer"))
			return
		}
	}

	candidates, err := h.placesClient.Nearby(r.Context(), lat, lng, radius)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"restaurants": candidates})
}
