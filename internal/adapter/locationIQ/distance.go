package locationIQ

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/internal/service/dispatch"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
)

var ErrNoRoute = errors.New("no route between points")

const defaultBaseURL = "https://us1.locationiq.com/v1"

// LocationIQClient returns driving distance from the directions API and
// falls back to great-circle distance when the API is unavailable.
type LocationIQClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	l       logger.Logger
}

func New(apiKey, baseURL string, timeout time.Duration, l logger.Logger) *LocationIQClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &LocationIQClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		l:       l,
	}
}

type directionsPayload struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// Distance returns km between two points. It never fails for valid points.
func (c *LocationIQClient) Distance(ctx context.Context, from, to models.Location) (float64, error) {
	if !from.Valid() || !to.Valid() {
		return 0, fmt.Errorf("%w: coordinates out of range", types.ErrInvalidInput)
	}
	if c.apiKey == "" {
		return dispatch.HaversineDistance(from, to), nil
	}

	km, err := c.RoadDistance(ctx, from, to)
	if err != nil {
		c.l.Warn(wrap.ErrorCtx(ctx, err), "road distance unavailable, using straight line", "error", err.Error())
		return dispatch.HaversineDistance(from, to), nil
	}
	return km, nil
}

// RoadDistance asks the directions API for the driving distance in km.
func (c *LocationIQClient) RoadDistance(ctx context.Context, from, to models.Location) (float64, error) {
	const op = "LocationIQClient.RoadDistance"

	coords := fmt.Sprintf("%f,%f;%f,%f", from.Longitude, from.Latitude, to.Longitude, to.Latitude)
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("overview", "false")
	endpoint := fmt.Sprintf("%s/directions/driving/%s?%s", c.baseURL, coords, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return 0, wrap.Error(ctx, fmt.Errorf("%s: failed to make request to LocationIQ: %w", op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return 0, wrap.Error(ctx, fmt.Errorf("%s: unexpected response status %d", op, resp.StatusCode))
	}

	var payload directionsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		ctx = wrap.WithAction(ctx, "decode_directions_payload")
		return 0, wrap.Error(ctx, fmt.Errorf("%s: failed to decode data from LocationIQ response: %w", op, err))
	}
	if len(payload.Routes) == 0 {
		return 0, wrap.Error(ctx, fmt.Errorf("%s: %w", op, ErrNoRoute))
	}

	return payload.Routes[0].Distance / 1000, nil
}
