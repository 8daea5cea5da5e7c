package database

import (
	"testing"
	"time"

	"github.com/kozaktomas/photo-moments/internal/geo"
)

func TestMacroClusterStatusValid(t *testing.T) {
	tests := []struct {
		status MacroClusterStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusCore, true},
		{StatusEdge, true},
		{StatusOrphan, true},
		{StatusDeletePending, true},
		{StatusInvalidForClustering, true},
		{"", false},
		{"CORE", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Errorf("MacroClusterStatus(%q).Valid() = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestAssetRecordCloneIsDeep(t *testing.T) {
	ts := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	orig := &AssetRecord{
		ID:       "a1",
		TakenAt:  &ts,
		Location: &geo.Coordinate{Latitude: 1, Longitude: 2},
		Status:   StatusCore,
	}

	clone := orig.Clone()
	clone.Location.Latitude = 99
	*clone.TakenAt = ts.Add(time.Hour)

	if orig.Location.Latitude != 1 {
		t.Error("clone shares location with original")
	}
	if !orig.TakenAt.Equal(ts) {
		t.Error("clone shares timestamp with original")
	}
}

func TestPlaceIsZero(t *testing.T) {
	if !(Place{}).IsZero() {
		t.Error("empty place should be zero")
	}
	if (Place{Country: "Czechia"}).IsZero() {
		t.Error("place with country should not be zero")
	}
}
