// Package geocode resolves located clusters to human readable places.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// ErrNoResult is returned when the geocoder knows no place at a coordinate.
var ErrNoResult = errors.New("no place found")

// Geocoder turns a coordinate into a place.
type Geocoder interface {
	Reverse(ctx context.Context, c geo.Coordinate) (database.Place, error)
}

// NominatimConfig configures a Nominatim client.
type NominatimConfig struct {
	URL               string
	UserAgent         string
	Language          string
	RequestsPerSecond float64
}

// Nominatim is a rate limited client for the OpenStreetMap Nominatim reverse
// geocoding endpoint.
type Nominatim struct {
	baseURL    *url.URL
	userAgent  string
	language   string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewNominatim creates a Nominatim client.
func NewNominatim(cfg NominatimConfig) (*Nominatim, error) {
	parsed, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid geocoder URL %q", cfg.URL)
	}
	if cfg.UserAgent == "" {
		return nil, errors.New("geocoder user agent is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("invalid geocoder rate %v", cfg.RequestsPerSecond)
	}

	return &Nominatim{
		baseURL:    parsed,
		userAgent:  cfg.UserAgent,
		language:   cfg.Language,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type reverseResponse struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Address     map[string]any `json:"address"`
	Error       string         `json:"error"`
}

// localityKeys are the Nominatim address fields tried in order for a locality.
var localityKeys = []string{"city", "town", "village", "hamlet", "municipality", "suburb", "county"}

// Reverse looks up the place at c.
func (n *Nominatim) Reverse(ctx context.Context, c geo.Coordinate) (database.Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return database.Place{}, err
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', 7, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', 7, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	u := n.baseURL.JoinPath("reverse")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return database.Place{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")
	if n.language != "" {
		req.Header.Set("Accept-Language", n.language)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return database.Place{}, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return database.Place{}, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return database.Place{}, fmt.Errorf("reverse geocoding failed with status %d: %s", resp.StatusCode, body)
	}

	var result reverseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return database.Place{}, fmt.Errorf("could not unmarshal response: %w", err)
	}
	if result.Error != "" {
		return database.Place{}, fmt.Errorf("%w at %s: %s", ErrNoResult, c, result.Error)
	}

	return database.Place{
		Name:        result.Name,
		Locality:    firstString(result.Address, localityKeys...),
		Country:     firstString(result.Address, "country"),
		DisplayName: result.DisplayName,
	}, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
