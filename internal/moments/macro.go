package moments

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
)

// excludedFromNeighbors are statuses never returned by a neighbor query.
var excludedFromNeighbors = []database.MacroClusterStatus{
	database.StatusDeletePending,
	database.StatusInvalidForClustering,
}

// MacroClusterer maintains MacroCluster membership as assets are inserted
// and deleted.
type MacroClusterer struct {
	params Params
	newID  func() string
}

// NewMacroClusterer creates a MacroClusterer.
func NewMacroClusterer(params Params) *MacroClusterer {
	return &MacroClusterer{params: params, newID: uuid.NewString}
}

// Neighbors returns the assets adjacent to asset, nearest first (ties by ID).
// The result always contains asset itself, so its length is the
// self-inclusive neighbor count. An asset without a capture time has only
// itself as neighbor.
func (m *MacroClusterer) Neighbors(ctx context.Context, tx database.Reader, asset *database.AssetRecord) ([]*database.AssetRecord, error) {
	if asset.TakenAt == nil {
		return []*database.AssetRecord{asset}, nil
	}

	w := m.params.window()
	candidates, err := tx.AssetsInWindow(ctx, asset.TakenAt.Add(-w), asset.TakenAt.Add(w), excludedFromNeighbors)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", asset.ID, err)
	}

	type scored struct {
		asset    *database.AssetRecord
		distance float64
	}
	result := []scored{{asset: asset}}
	for _, c := range candidates {
		if c.ID == asset.ID {
			continue
		}
		if d := Distance(m.params, asset, c); d < m.params.MaxDistance {
			result = append(result, scored{asset: c, distance: d})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].distance != result[j].distance {
			return result[i].distance < result[j].distance
		}
		return result[i].asset.ID < result[j].asset.ID
	})

	out := make([]*database.AssetRecord, len(result))
	for i, s := range result {
		out[i] = s.asset
	}
	return out, nil
}

func (m *MacroClusterer) isCore(ctx context.Context, tx database.Reader, asset *database.AssetRecord) (bool, error) {
	ns, err := m.Neighbors(ctx, tx, asset)
	if err != nil {
		return false, err
	}
	return len(ns) >= m.params.MinClusterableAssetCount, nil
}

// ProcessPendingAsset applies the insert transition to a pending asset.
// Adjacent core assets pull it into their cluster (merging clusters it
// bridges), adjacent edge and orphan assets that may have become core are
// flagged pending, and a core asset with no clustered neighbor founds a new
// cluster. The asset is saved as core, edge or orphan.
func (m *MacroClusterer) ProcessPendingAsset(ctx context.Context, tx database.Tx, asset *database.AssetRecord) error {
	if asset.Status != database.StatusPending {
		log.Debug().Str("asset", asset.ID).Str("status", string(asset.Status)).
			Msg("insert transition skipped: asset is not pending")
		return nil
	}

	ns, err := m.Neighbors(ctx, tx, asset)
	if err != nil {
		return err
	}
	isCore := len(ns) >= m.params.MinClusterableAssetCount

	cluster, err := m.existingCluster(ctx, tx, asset.MacroClusterID)
	if err != nil {
		return err
	}

	for _, n := range ns {
		if n.ID == asset.ID {
			continue
		}

		switch n.Status {
		case database.StatusPending:
			// Reprocessed on its own turn.

		case database.StatusCore:
			other := n.MacroClusterID
			switch {
			case other == "" || other == cluster:
			case cluster == "":
				cluster = other
			default:
				cluster, err = m.merge(ctx, tx, cluster, other, ns)
				if err != nil {
					return err
				}
			}

		case database.StatusEdge:
			core, err := m.isCore(ctx, tx, n)
			if err != nil {
				return err
			}
			if core {
				n.Status = database.StatusPending
				if err := tx.SaveAsset(ctx, n); err != nil {
					return err
				}
			}

		case database.StatusOrphan:
			if isCore {
				n.Status = database.StatusPending
				if err := tx.SaveAsset(ctx, n); err != nil {
					return err
				}
			}
		}
	}

	if isCore && cluster == "" {
		cluster = m.newID()
		err := tx.SaveMacroCluster(ctx, &database.MacroCluster{
			ID:                   cluster,
			LocatedClusterStatus: database.LocatedStatusPending,
		})
		if err != nil {
			return err
		}
		log.Debug().Str("asset", asset.ID).Str("cluster", cluster).Msg("created macro cluster")
	}

	if cluster != "" {
		if err := markLocatedPending(ctx, tx, cluster); err != nil {
			return err
		}
	}

	asset.MacroClusterID = cluster
	switch {
	case cluster == "":
		asset.Status = database.StatusOrphan
		asset.LocatedClusterID = ""
	case isCore:
		asset.Status = database.StatusCore
	default:
		asset.Status = database.StatusEdge
	}
	return tx.SaveAsset(ctx, asset)
}

// existingCluster returns id when that MacroCluster still exists.
func (m *MacroClusterer) existingCluster(ctx context.Context, tx database.Reader, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	_, err := tx.GetMacroCluster(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		log.Debug().Str("cluster", id).Msg("ignoring reference to deleted macro cluster")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// merge folds the smaller of two clusters into the larger and returns the
// survivor. On equal size a survives. Loaded records in ns are kept in sync
// with the reassignment.
func (m *MacroClusterer) merge(ctx context.Context, tx database.Tx, a, b string, ns []*database.AssetRecord) (string, error) {
	sizeA, err := tx.CountMacroClusterMembers(ctx, a)
	if err != nil {
		return "", err
	}
	sizeB, err := tx.CountMacroClusterMembers(ctx, b)
	if err != nil {
		return "", err
	}

	survivor, absorbed := a, b
	if sizeB > sizeA {
		survivor, absorbed = b, a
	}

	members, err := tx.AssetsByMacroCluster(ctx, absorbed)
	if err != nil {
		return "", err
	}
	for _, member := range members {
		member.MacroClusterID = survivor
		if err := tx.SaveAsset(ctx, member); err != nil {
			return "", err
		}
	}
	for _, n := range ns {
		if n.MacroClusterID == absorbed {
			n.MacroClusterID = survivor
		}
	}

	// Located clusters move along so reconciliation can reuse them.
	located, err := tx.LocatedClustersByMacroCluster(ctx, absorbed)
	if err != nil {
		return "", err
	}
	for _, l := range located {
		l.MacroClusterID = survivor
		if err := tx.SaveLocatedCluster(ctx, l); err != nil {
			return "", err
		}
	}

	if err := tx.DeleteMacroCluster(ctx, absorbed); err != nil {
		return "", err
	}
	if err := markLocatedPending(ctx, tx, survivor); err != nil {
		return "", err
	}

	log.Debug().Str("survivor", survivor).Str("absorbed", absorbed).
		Int("moved", len(members)).Msg("merged macro clusters")
	return survivor, nil
}

// ProcessDeletedAsset applies the delete transition to a deletePending asset.
// The remaining members of its cluster are split into connected components;
// the largest component keeps the cluster when it still has a core member,
// the rest are detached and flagged pending. Without a core the cluster is
// dissolved. The asset itself is removed.
func (m *MacroClusterer) ProcessDeletedAsset(ctx context.Context, tx database.Tx, asset *database.AssetRecord) error {
	if asset.Status != database.StatusDeletePending {
		log.Debug().Str("asset", asset.ID).Str("status", string(asset.Status)).
			Msg("delete transition skipped: asset is not delete pending")
		return nil
	}

	clusterID := asset.MacroClusterID
	if clusterID == "" {
		return tx.DeleteAsset(ctx, asset.ID)
	}

	members, err := tx.AssetsByMacroCluster(ctx, clusterID)
	if err != nil {
		return err
	}

	var live []*database.AssetRecord
	for _, member := range members {
		if member.Status != database.StatusDeletePending {
			live = append(live, member)
		}
	}

	components, err := m.components(ctx, tx, live)
	if err != nil {
		return err
	}

	var largest []*database.AssetRecord
	for _, c := range components {
		if len(c) > len(largest) {
			largest = c
		}
	}
	hasCore := false
	for _, member := range largest {
		if member.Status == database.StatusCore {
			hasCore = true
			break
		}
	}

	if !hasCore {
		if err := m.dissolve(ctx, tx, clusterID, members, asset.ID); err != nil {
			return err
		}
		return tx.DeleteAsset(ctx, asset.ID)
	}

	keep := make(map[string]bool, len(largest))
	for _, member := range largest {
		keep[member.ID] = true
	}
	detached := 0
	for _, member := range members {
		if member.ID == asset.ID || keep[member.ID] {
			continue
		}
		member.MacroClusterID = ""
		member.LocatedClusterID = ""
		if member.Status != database.StatusDeletePending {
			member.Status = database.StatusPending
		}
		if err := tx.SaveAsset(ctx, member); err != nil {
			return err
		}
		detached++
	}
	if err := markLocatedPending(ctx, tx, clusterID); err != nil {
		return err
	}
	if detached > 0 {
		log.Debug().Str("cluster", clusterID).Int("detached", detached).Msg("split macro cluster")
	}

	return tx.DeleteAsset(ctx, asset.ID)
}

// components returns the connected components of members under adjacency,
// discovered in member order. Each visited core or edge member is
// reclassified against its current neighbor count.
func (m *MacroClusterer) components(ctx context.Context, tx database.Tx, members []*database.AssetRecord) ([][]*database.AssetRecord, error) {
	visited := make([]bool, len(members))
	var components [][]*database.AssetRecord

	for start := range members {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		var component []*database.AssetRecord

		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			u := members[i]

			if err := m.reclassify(ctx, tx, u); err != nil {
				return nil, err
			}
			component = append(component, u)

			for j, v := range members {
				if !visited[j] && Adjacent(m.params, u, v) {
					visited[j] = true
					queue = append(queue, j)
				}
			}
		}
		components = append(components, component)
	}
	return components, nil
}

// reclassify patches a core/edge member whose density class changed.
func (m *MacroClusterer) reclassify(ctx context.Context, tx database.Tx, member *database.AssetRecord) error {
	if member.Status != database.StatusCore && member.Status != database.StatusEdge {
		return nil
	}
	core, err := m.isCore(ctx, tx, member)
	if err != nil {
		return err
	}
	want := database.StatusEdge
	if core {
		want = database.StatusCore
	}
	if member.Status == want {
		return nil
	}
	member.Status = want
	return tx.SaveAsset(ctx, member)
}

// dissolve deletes a cluster with its located clusters. Former members lose
// their references; clustered ones become orphans.
func (m *MacroClusterer) dissolve(ctx context.Context, tx database.Tx, clusterID string, members []*database.AssetRecord, deletedID string) error {
	located, err := tx.LocatedClustersByMacroCluster(ctx, clusterID)
	if err != nil {
		return err
	}
	for _, l := range located {
		if err := tx.DeleteLocatedCluster(ctx, l.ID); err != nil {
			return err
		}
	}
	if err := tx.DeleteMacroCluster(ctx, clusterID); err != nil {
		return err
	}

	for _, member := range members {
		if member.ID == deletedID {
			continue
		}
		member.MacroClusterID = ""
		member.LocatedClusterID = ""
		if member.Status == database.StatusCore || member.Status == database.StatusEdge {
			member.Status = database.StatusOrphan
		}
		if err := tx.SaveAsset(ctx, member); err != nil {
			return err
		}
	}

	log.Debug().Str("cluster", clusterID).Int("members", len(members)-1).Msg("dissolved macro cluster")
	return nil
}

// markLocatedPending flags a MacroCluster for location subdivision.
func markLocatedPending(ctx context.Context, tx database.Tx, clusterID string) error {
	cluster, err := tx.GetMacroCluster(ctx, clusterID)
	if err != nil {
		return err
	}
	if cluster.LocatedClusterStatus == database.LocatedStatusPending {
		return nil
	}
	cluster.LocatedClusterStatus = database.LocatedStatusPending
	return tx.SaveMacroCluster(ctx, cluster)
}
