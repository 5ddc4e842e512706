package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/model"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	defaultRadius  = 10000
	photoMaxWidth  = 400
)

// Client talks to the Google Places nearby-search API and turns the results
// into room candidates. The server trusts the list as returned; no
// filtering or ranking happens here.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID string   `json:"place_id"`
		Name    string   `json:"name"`
		Rating  *float64 `json:"rating"`
		Types   []string `json:"types"`
		Photos  []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"results"`
}

// Nearby returns restaurants around the coordinate. radiusMeters <= 0 falls
// back to the default search radius.
func (c *Client) Nearby(ctx context.Context, lat, lng float64, radiusMeters int) ([]model.Candidate, error) {
	if c.apiKey == "" {
		return nil, apperrors.Internal("Restaurant search is not configured")
	}
	if radiusMeters <= 0 {
		radiusMeters = defaultRadius
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", strconv.Itoa(radiusMeters))
	params.Set("type", "restaurant")
	params.Set("key", c.apiKey)

	reqURL := c.baseURL + "/nearbysearch/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.External("google places", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.External("google places", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.External("google places", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.External("google places", err)
	}

	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return nil, apperrors.External("google places",
			fmt.Errorf("status %s: %s", body.Status, body.ErrorMessage))
	}

	candidates := make([]model.Candidate, 0, len(body.Results))
	for _, place := range body.Results {
		if place.PlaceID == "" || place.Name == "" {
			continue
		}

		candidate := model.Candidate{
			ID:     place.PlaceID,
			Name:   place.Name,
			Rating: place.Rating,
		}
		if len(place.Types) > 0 {
			candidate.Category = place.Types[0]
		}
		if len(place.Photos) > 0 && place.Photos[0].PhotoReference != "" {
			photoURL := c.photoURL(place.Photos[0].PhotoReference)
			candidate.PhotoURL = &photoURL
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func (c *Client) photoURL(photoReference string) string {
	params := url.Values{}
	params.Set("maxwidth", strconv.Itoa(photoMaxWidth))
	params.Set("photoreference", photoReference)
	params.Set("key", c.apiKey)
	return c.baseURL + "/photo?" + params.Encode()
}
