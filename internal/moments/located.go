package moments

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// Subdivider splits a MacroCluster into LocatedClusters and reconciles them
// with the ones already stored, keeping identifiers and geocoding results
// stable when membership and location barely change.
type Subdivider struct {
	params Params
	newID  func() string
}

// NewSubdivider creates a Subdivider.
func NewSubdivider(params Params) *Subdivider {
	return &Subdivider{params: params, newID: uuid.NewString}
}

// group is a provisional located cluster.
type group struct {
	members  []*database.AssetRecord
	location *geo.Coordinate
}

func (g *group) ids() map[string]bool {
	ids := make(map[string]bool, len(g.members))
	for _, a := range g.members {
		ids[a.ID] = true
	}
	return ids
}

// SubdivisionResult counts what a subdivision changed.
type SubdivisionResult struct {
	Created     int
	Updated     int
	Deleted     int
	Invalidated int
}

// Subdivide recomputes the located clusters of cluster and marks it located.
func (s *Subdivider) Subdivide(ctx context.Context, tx database.Tx, cluster *database.MacroCluster) (SubdivisionResult, error) {
	var result SubdivisionResult

	members, err := tx.AssetsByMacroCluster(ctx, cluster.ID)
	if err != nil {
		return result, err
	}

	groups := s.groups(members)

	existing, err := tx.LocatedClustersByMacroCluster(ctx, cluster.ID)
	if err != nil {
		return result, err
	}

	// Working copies of every asset whose reference may change.
	assets := make(map[string]*database.AssetRecord, len(members))
	original := make(map[string]string, len(members))
	track := func(a *database.AssetRecord) *database.AssetRecord {
		if cur, ok := assets[a.ID]; ok {
			return cur
		}
		assets[a.ID] = a
		original[a.ID] = a.LocatedClusterID
		return a
	}
	for _, a := range members {
		track(a)
	}

	existingMembers := make([]map[string]bool, len(existing))
	for i, e := range existing {
		current, err := tx.AssetsByLocatedCluster(ctx, e.ID)
		if err != nil {
			return result, err
		}
		existingMembers[i] = make(map[string]bool, len(current))
		for _, a := range current {
			track(a)
			existingMembers[i][a.ID] = true
		}
	}

	groupMembers := make([]map[string]bool, len(groups))
	for i, g := range groups {
		groupMembers[i] = g.ids()
	}

	usedExisting := make([]bool, len(existing))
	usedGroup := make([]bool, len(groups))

	for {
		bestE, bestG, best := -1, -1, 0
		for i := range existing {
			if usedExisting[i] {
				continue
			}
			for j := range groups {
				if usedGroup[j] {
					continue
				}
				if n := intersection(existingMembers[i], groupMembers[j]); n > best {
					bestE, bestG, best = i, j, n
				}
			}
		}
		if best == 0 {
			break
		}
		usedExisting[bestE] = true
		usedGroup[bestG] = true

		e := existing[bestE]
		for id := range existingMembers[bestE] {
			if !groupMembers[bestG][id] && assets[id].LocatedClusterID == e.ID {
				assets[id].LocatedClusterID = ""
			}
		}
		for _, a := range groups[bestG].members {
			assets[a.ID].LocatedClusterID = e.ID
		}

		changed, invalidated := s.relocate(e, groups[bestG].location)
		if e.MacroClusterID != cluster.ID {
			e.MacroClusterID = cluster.ID
			changed = true
		}
		if changed {
			if err := tx.SaveLocatedCluster(ctx, e); err != nil {
				return result, err
			}
			result.Updated++
		}
		if invalidated {
			result.Invalidated++
		}
	}

	for j, g := range groups {
		if usedGroup[j] {
			continue
		}
		l := &database.LocatedCluster{
			ID:             s.newID(),
			MacroClusterID: cluster.ID,
			Location:       g.location,
			LocationStatus: database.LocationPending,
		}
		if err := tx.SaveLocatedCluster(ctx, l); err != nil {
			return result, err
		}
		for _, a := range g.members {
			assets[a.ID].LocatedClusterID = l.ID
		}
		result.Created++
	}

	for i, e := range existing {
		if usedExisting[i] {
			continue
		}
		for id := range existingMembers[i] {
			if assets[id].LocatedClusterID == e.ID {
				assets[id].LocatedClusterID = ""
			}
		}
		if err := tx.DeleteLocatedCluster(ctx, e.ID); err != nil {
			return result, err
		}
		result.Deleted++
	}

	ids := make([]string, 0, len(assets))
	for id, a := range assets {
		if a.LocatedClusterID != original[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := tx.SaveAsset(ctx, assets[id]); err != nil {
			return result, err
		}
	}

	cluster.LocatedClusterStatus = database.LocatedStatusLocated
	if err := tx.SaveMacroCluster(ctx, cluster); err != nil {
		return result, err
	}

	log.Debug().Str("cluster", cluster.ID).Int("members", len(members)).
		Int("created", result.Created).Int("updated", result.Updated).
		Int("deleted", result.Deleted).Int("invalidated", result.Invalidated).
		Msg("subdivided macro cluster")
	return result, nil
}

// relocate moves e to location. It reports whether e changed and whether its
// geocoding was invalidated.
func (s *Subdivider) relocate(e *database.LocatedCluster, location *geo.Coordinate) (changed, invalidated bool) {
	switch {
	case (e.Location == nil) != (location == nil):
		invalidated = true
	case e.Location != nil && geo.Distance(*e.Location, *location) >= s.params.LocationInvalidationDistance:
		invalidated = true
	}

	if !geo.Equal(e.Location, location) {
		if location != nil {
			loc := *location
			e.Location = &loc
		} else {
			e.Location = nil
		}
		changed = true
	}
	if invalidated && e.LocationStatus != database.LocationPending {
		e.LocationStatus = database.LocationPending
		e.Place = database.Place{}
		changed = true
	}
	return changed, invalidated
}

// groups partitions members into provisional located clusters.
func (s *Subdivider) groups(members []*database.AssetRecord) []*group {
	var withLocation, withoutLocation []*database.AssetRecord
	for _, a := range members {
		if a.HasLocation() {
			withLocation = append(withLocation, a)
		} else {
			withoutLocation = append(withoutLocation, a)
		}
	}

	var groups []*group
	if len(withLocation) > 0 {
		points := make([]geo.Coordinate, len(withLocation))
		for i, a := range withLocation {
			points[i] = *a.Location
		}
		modes := meanShift(points, s.params.MeanShiftDistanceNormalizationFactor,
			s.params.ConvergenceThreshold, s.params.MeanShiftMaxIterations)

		for _, idx := range groupByProximity(modes, 2*s.params.ConvergenceThreshold) {
			if len(idx) < s.params.MinClusterableAssetCount {
				for _, i := range idx {
					withoutLocation = append(withoutLocation, withLocation[i])
				}
				continue
			}
			g := &group{}
			var mean geo.RunningMean
			for _, i := range idx {
				g.members = append(g.members, withLocation[i])
				mean.Add(*withLocation[i].Location)
			}
			g.location = mean.Mean()
			groups = append(groups, g)
		}
	}

	if len(groups) == 0 {
		if len(withoutLocation) == 0 {
			return nil
		}
		return []*group{remainder(withoutLocation)}
	}

	// Attach the rest to the group holding their nearest located member.
	var leftover []*database.AssetRecord
	for _, a := range withoutLocation {
		var nearest *group
		nearestDistance := 0.0
		for _, g := range groups {
			for _, m := range g.members {
				if !m.HasLocation() {
					continue
				}
				if d := Distance(s.params, a, m); nearest == nil || d < nearestDistance {
					nearest, nearestDistance = g, d
				}
			}
		}
		if nearest != nil && nearestDistance <= s.params.MaxDistance {
			nearest.members = append(nearest.members, a)
		} else {
			leftover = append(leftover, a)
		}
	}
	if len(leftover) > 0 {
		groups = append(groups, remainder(leftover))
	}
	return groups
}

// remainder builds a group located at the mean of its located members, if any.
func remainder(members []*database.AssetRecord) *group {
	var mean geo.RunningMean
	for _, a := range members {
		if a.HasLocation() {
			mean.Add(*a.Location)
		}
	}
	return &group{members: members, location: mean.Mean()}
}

func intersection(a, b map[string]bool) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for id := range a {
		if b[id] {
			n++
		}
	}
	return n
}
