package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/database/memory"
	"github.com/kozaktomas/photo-moments/internal/geo"
	"github.com/kozaktomas/photo-moments/internal/moments"
	"github.com/kozaktomas/photo-moments/internal/pipeline"
)

var testBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testAsset(id string, minutes int, lat float64) *database.AssetRecord {
	t := testBase.Add(time.Duration(minutes) * time.Minute)
	return &database.AssetRecord{
		ID:       id,
		TakenAt:  &t,
		Location: &geo.Coordinate{Latitude: lat, Longitude: 16.6},
		Status:   database.StatusPending,
	}
}

// clusteredStore returns a store holding two moments a day apart, one lone
// photo and one photo without a capture time, fully clustered.
func clusteredStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	assets := []*database.AssetRecord{
		testAsset("a1", 0, 49.2), testAsset("a2", 5, 49.2), testAsset("a3", 10, 49.2),
		testAsset("b1", 1440, 50.1), testAsset("b2", 1445, 50.1), testAsset("b3", 1450, 50.1), testAsset("b4", 1455, 50.1),
		testAsset("lone", 5000, 50.1),
		{ID: "undated", Status: database.StatusInvalidForClustering},
	}
	err := store.WithTx(ctx, func(tx database.Tx) error {
		for _, a := range assets {
			if err := tx.SaveAsset(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	if _, err := pipeline.NewDriver(store, moments.DefaultParams(), pipeline.Options{}).Run(ctx); err != nil {
		t.Fatalf("failed to cluster: %v", err)
	}
	return store
}

// momentOf returns the MacroClusterID of an asset.
func momentOf(t *testing.T, store database.Store, assetID string) string {
	t.Helper()
	var id string
	err := store.ReadTx(context.Background(), func(tx database.Reader) error {
		a, err := tx.GetAsset(context.Background(), assetID)
		if err != nil {
			return err
		}
		id = a.MacroClusterID
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read asset %s: %v", assetID, err)
	}
	return id
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// failingStore is a store whose transactions always fail
type failingStore struct {
	err error
}

func (s failingStore) WithTx(context.Context, func(database.Tx) error) error { return s.err }
func (s failingStore) ReadTx(context.Context, func(database.Reader) error) error { return s.err }
func (s failingStore) Close() error { return nil }

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
