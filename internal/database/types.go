package database

import (
	"time"

	"github.com/kozaktomas/photo-moments/internal/geo"
)

// MacroClusterStatus is the clustering classification of an asset.
type MacroClusterStatus string

// MacroClusterStatus values. Pending and DeletePending mark work for the driver.
const (
	StatusPending              MacroClusterStatus = "pending"
	StatusCore                 MacroClusterStatus = "core"
	StatusEdge                 MacroClusterStatus = "edge"
	StatusOrphan               MacroClusterStatus = "orphan"
	StatusDeletePending        MacroClusterStatus = "delete_pending"
	StatusInvalidForClustering MacroClusterStatus = "invalid"
)

// Valid reports whether s is a known status.
func (s MacroClusterStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCore, StatusEdge, StatusOrphan, StatusDeletePending, StatusInvalidForClustering:
		return true
	}
	return false
}

// LocatedClusterStatus tracks whether a macro cluster's location subdivision is current.
type LocatedClusterStatus string

// LocatedClusterStatus values.
const (
	LocatedStatusPending LocatedClusterStatus = "pending"
	LocatedStatusLocated LocatedClusterStatus = "located"
)

// LocationStatus tracks the reverse geocoding state of a located cluster.
type LocationStatus string

// LocationStatus values.
const (
	LocationPending    LocationStatus = "pending"
	LocationLocated    LocationStatus = "located"
	LocationFailed     LocationStatus = "failed"
	LocationNoLocation LocationStatus = "no_location"
)

// AssetRecord is one media item known to the clustering engine.
// Empty MacroClusterID/LocatedClusterID mean the asset is not assigned.
type AssetRecord struct {
	ID               string
	TakenAt          *time.Time
	Location         *geo.Coordinate
	Status           MacroClusterStatus
	MacroClusterID   string
	LocatedClusterID string
	UpdatedAt        time.Time
}

// HasLocation reports whether the asset carries a coordinate.
func (a *AssetRecord) HasLocation() bool {
	return a.Location != nil
}

// Clone returns a deep copy of the record.
func (a *AssetRecord) Clone() *AssetRecord {
	c := *a
	if a.TakenAt != nil {
		t := *a.TakenAt
		c.TakenAt = &t
	}
	if a.Location != nil {
		l := *a.Location
		c.Location = &l
	}
	return &c
}

// MacroCluster is a density-connected set of assets (a moment).
type MacroCluster struct {
	ID                   string
	LocatedClusterStatus LocatedClusterStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Place is the reverse geocoded description of a located cluster.
type Place struct {
	Name        string `json:"name,omitempty"`
	Locality    string `json:"locality,omitempty"`
	Country     string `json:"country,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsZero reports whether no place data is set.
func (p Place) IsZero() bool {
	return p == Place{}
}

// LocatedCluster is a spatial subdivision of a macro cluster.
// Its members are the assets whose LocatedClusterID points at it.
type LocatedCluster struct {
	ID             string
	MacroClusterID string
	Location       *geo.Coordinate
	Place          Place
	LocationStatus LocationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy of the cluster.
func (c *LocatedCluster) Clone() *LocatedCluster {
	cp := *c
	if c.Location != nil {
		l := *c.Location
		cp.Location = &l
	}
	return &cp
}

// MacroClusterSummary is a macro cluster with aggregate data for listings.
type MacroClusterSummary struct {
	MacroCluster
	MemberCount int
	Start       *time.Time
	End         *time.Time
}
