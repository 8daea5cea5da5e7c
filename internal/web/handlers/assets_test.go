package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssetsHandler_Get(t *testing.T) {
	store := clusteredStore(t)
	handler := NewAssetsHandler(store)

	tests := []struct {
		id         string
		wantStatus string
		clustered  bool
	}{
		{"a1", "core", true},
		{"lone", "orphan", false},
		{"undated", "invalid", false},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/assets/"+tc.id, nil), map[string]string{"id": tc.id})
			recorder := httptest.NewRecorder()
			handler.Get(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var resp AssetResponse
			parseJSONResponse(t, recorder, &resp)

			if resp.ID != tc.id {
				t.Errorf("expected id '%s', got '%s'", tc.id, resp.ID)
			}
			if resp.Status != tc.wantStatus {
				t.Errorf("expected status '%s', got '%s'", tc.wantStatus, resp.Status)
			}
			if clustered := resp.MacroClusterID != ""; clustered != tc.clustered {
				t.Errorf("expected clustered=%v, got moment_id '%s'", tc.clustered, resp.MacroClusterID)
			}
			if tc.clustered && resp.LocatedClusterID == "" {
				t.Error("expected clustered asset to have a place")
			}
		})
	}
}

func TestAssetsHandler_Get_NotFound(t *testing.T) {
	handler := NewAssetsHandler(clusteredStore(t))

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/assets/nope", nil), map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "asset not found")
}

func TestAssetsHandler_Get_StoreError(t *testing.T) {
	handler := NewAssetsHandler(failingStore{err: errors.New("connection refused")})

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/assets/a1", nil), map[string]string{"id": "a1"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to load asset")
}
