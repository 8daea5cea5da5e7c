// Package memory provides an in-memory implementation of database.Store.
// Transactions run against a copy of the data that replaces the live state on
// commit, so a failed transaction leaves nothing behind. It backs the unit
// tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/photo-moments/internal/database"
)

type state struct {
	assets  map[string]*database.AssetRecord
	macros  map[string]*database.MacroCluster
	located map[string]*database.LocatedCluster
}

func newState() *state {
	return &state{
		assets:  make(map[string]*database.AssetRecord),
		macros:  make(map[string]*database.MacroCluster),
		located: make(map[string]*database.LocatedCluster),
	}
}

func (s *state) clone() *state {
	c := &state{
		assets:  make(map[string]*database.AssetRecord, len(s.assets)),
		macros:  make(map[string]*database.MacroCluster, len(s.macros)),
		located: make(map[string]*database.LocatedCluster, len(s.located)),
	}
	for id, a := range s.assets {
		c.assets[id] = a.Clone()
	}
	for id, m := range s.macros {
		cp := *m
		c.macros[id] = &cp
	}
	for id, l := range s.located {
		c.located[id] = l.Clone()
	}
	return c
}

// Store is an in-memory database.Store
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time

	// Error injection: the next FailTx transactions return TxError
	// before fn runs.
	injectMu sync.Mutex
	failTx   int
	txErr    error
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		state: newState(),
		now:   time.Now,
	}
}

// SetClock overrides the clock used for CreatedAt/UpdatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNextTx makes the next n transactions fail with err.
func (s *Store) FailNextTx(n int, err error) {
	s.injectMu.Lock()
	defer s.injectMu.Unlock()
	s.failTx = n
	s.txErr = err
}

func (s *Store) injectedError() error {
	s.injectMu.Lock()
	defer s.injectMu.Unlock()
	if s.failTx > 0 {
		s.failTx--
		return s.txErr
	}
	return nil
}

// WithTx runs fn against a snapshot and commits it when fn succeeds
func (s *Store) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	if err := s.injectedError(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{state: s.state.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// ReadTx runs fn against the current state
func (s *Store) ReadTx(ctx context.Context, fn func(tx database.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{state: s.state, now: s.now, readOnly: true})
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

type tx struct {
	state    *state
	now      func() time.Time
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return fmt.Errorf("write in read-only transaction")
	}
	return nil
}

// assetLess orders assets by capture time (missing times last), then ID.
func assetLess(a, b *database.AssetRecord) bool {
	switch {
	case a.TakenAt == nil && b.TakenAt == nil:
		return a.ID < b.ID
	case a.TakenAt == nil:
		return false
	case b.TakenAt == nil:
		return true
	case !a.TakenAt.Equal(*b.TakenAt):
		return a.TakenAt.Before(*b.TakenAt)
	}
	return a.ID < b.ID
}

func (t *tx) collectAssets(match func(a *database.AssetRecord) bool) []*database.AssetRecord {
	var out []*database.AssetRecord
	for _, a := range t.state.assets {
		if match(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return assetLess(out[i], out[j]) })
	return out
}

func (t *tx) GetAsset(ctx context.Context, id string) (*database.AssetRecord, error) {
	a, ok := t.state.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, database.ErrNotFound)
	}
	return a.Clone(), nil
}

func (t *tx) AssetsInWindow(ctx context.Context, from, to time.Time, exclude []database.MacroClusterStatus) ([]*database.AssetRecord, error) {
	excluded := make(map[database.MacroClusterStatus]bool, len(exclude))
	for _, s := range exclude {
		excluded[s] = true
	}
	return t.collectAssets(func(a *database.AssetRecord) bool {
		if a.TakenAt == nil || excluded[a.Status] {
			return false
		}
		return !a.TakenAt.Before(from) && !a.TakenAt.After(to)
	}), nil
}

func (t *tx) AssetsByMacroCluster(ctx context.Context, clusterID string) ([]*database.AssetRecord, error) {
	if clusterID == "" {
		return nil, nil
	}
	return t.collectAssets(func(a *database.AssetRecord) bool {
		return a.MacroClusterID == clusterID
	}), nil
}

func (t *tx) AssetsByLocatedCluster(ctx context.Context, clusterID string) ([]*database.AssetRecord, error) {
	if clusterID == "" {
		return nil, nil
	}
	return t.collectAssets(func(a *database.AssetRecord) bool {
		return a.LocatedClusterID == clusterID
	}), nil
}

func (t *tx) AssetIDsByStatus(ctx context.Context, statuses []database.MacroClusterStatus, limit int) ([]string, error) {
	wanted := make(map[database.MacroClusterStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	assets := t.collectAssets(func(a *database.AssetRecord) bool {
		return wanted[a.Status]
	})
	if limit > 0 && len(assets) > limit {
		assets = assets[:limit]
	}
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids, nil
}

func (t *tx) AllAssets(ctx context.Context) ([]*database.AssetRecord, error) {
	out := t.collectAssets(func(*database.AssetRecord) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) CountAssetsByStatus(ctx context.Context) (map[database.MacroClusterStatus]int, error) {
	counts := make(map[database.MacroClusterStatus]int)
	for _, a := range t.state.assets {
		counts[a.Status]++
	}
	return counts, nil
}

func (t *tx) GetMacroCluster(ctx context.Context, id string) (*database.MacroCluster, error) {
	m, ok := t.state.macros[id]
	if !ok {
		return nil, fmt.Errorf("macro cluster %s: %w", id, database.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (t *tx) CountMacroClusterMembers(ctx context.Context, id string) (int, error) {
	n := 0
	for _, a := range t.state.assets {
		if a.MacroClusterID == id {
			n++
		}
	}
	return n, nil
}

func (t *tx) MacroClustersByLocatedStatus(ctx context.Context, status database.LocatedClusterStatus) ([]*database.MacroCluster, error) {
	var out []*database.MacroCluster
	for _, m := range t.state.macros {
		if m.LocatedClusterStatus == status {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) ListMacroClusters(ctx context.Context, limit, offset int) ([]database.MacroClusterSummary, error) {
	summaries := make(map[string]*database.MacroClusterSummary, len(t.state.macros))
	for id, m := range t.state.macros {
		summaries[id] = &database.MacroClusterSummary{MacroCluster: *m}
	}
	for _, a := range t.state.assets {
		s, ok := summaries[a.MacroClusterID]
		if !ok {
			continue
		}
		s.MemberCount++
		if a.TakenAt == nil {
			continue
		}
		if s.Start == nil || a.TakenAt.Before(*s.Start) {
			ts := *a.TakenAt
			s.Start = &ts
		}
		if s.End == nil || a.TakenAt.After(*s.End) {
			ts := *a.TakenAt
			s.End = &ts
		}
	}

	out := make([]database.MacroClusterSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Start, out[j].Start
		switch {
		case si == nil && sj == nil:
			return out[i].ID < out[j].ID
		case si == nil:
			return false
		case sj == nil:
			return true
		case !si.Equal(*sj):
			return si.After(*sj)
		}
		return out[i].ID < out[j].ID
	})

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) GetLocatedCluster(ctx context.Context, id string) (*database.LocatedCluster, error) {
	l, ok := t.state.located[id]
	if !ok {
		return nil, fmt.Errorf("located cluster %s: %w", id, database.ErrNotFound)
	}
	return l.Clone(), nil
}

func (t *tx) collectLocated(match func(l *database.LocatedCluster) bool, limit int) []*database.LocatedCluster {
	var out []*database.LocatedCluster
	for _, l := range t.state.located {
		if match(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (t *tx) LocatedClustersByMacroCluster(ctx context.Context, macroClusterID string) ([]*database.LocatedCluster, error) {
	return t.collectLocated(func(l *database.LocatedCluster) bool {
		return l.MacroClusterID == macroClusterID
	}, 0), nil
}

func (t *tx) LocatedClustersByStatus(ctx context.Context, status database.LocationStatus, limit int) ([]*database.LocatedCluster, error) {
	return t.collectLocated(func(l *database.LocatedCluster) bool {
		return l.LocationStatus == status
	}, limit), nil
}

func (t *tx) SaveAsset(ctx context.Context, asset *database.AssetRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	stored := asset.Clone()
	stored.UpdatedAt = t.now()
	asset.UpdatedAt = stored.UpdatedAt
	t.state.assets[asset.ID] = stored
	return nil
}

func (t *tx) DeleteAsset(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.state.assets, id)
	return nil
}

func (t *tx) SaveMacroCluster(ctx context.Context, cluster *database.MacroCluster) error {
	if err := t.writable(); err != nil {
		return err
	}
	now := t.now()
	if existing, ok := t.state.macros[cluster.ID]; ok {
		cluster.CreatedAt = existing.CreatedAt
	} else if cluster.CreatedAt.IsZero() {
		cluster.CreatedAt = now
	}
	cluster.UpdatedAt = now
	cp := *cluster
	t.state.macros[cluster.ID] = &cp
	return nil
}

func (t *tx) DeleteMacroCluster(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.state.macros, id)
	return nil
}

func (t *tx) SaveLocatedCluster(ctx context.Context, cluster *database.LocatedCluster) error {
	if err := t.writable(); err != nil {
		return err
	}
	now := t.now()
	if existing, ok := t.state.located[cluster.ID]; ok {
		cluster.CreatedAt = existing.CreatedAt
	} else if cluster.CreatedAt.IsZero() {
		cluster.CreatedAt = now
	}
	cluster.UpdatedAt = now
	t.state.located[cluster.ID] = cluster.Clone()
	return nil
}

func (t *tx) DeleteLocatedCluster(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.state.located, id)
	return nil
}

// Verify interface compliance.
var _ database.Store = (*Store)(nil)
var _ database.Tx = (*tx)(nil)
