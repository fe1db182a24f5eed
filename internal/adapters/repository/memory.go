package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/pkg/metrics"
)

// timeline is one entity's snapshots sorted by position.
type timeline struct {
	mu    sync.RWMutex
	snaps []model.Snapshot
}

// find returns the index of pos or the index it would be inserted at.
func (t *timeline) find(pos model.Position) (int, bool) {
	i := sort.Search(len(t.snaps), func(i int) bool {
		return !t.snaps[i].Position().Before(pos)
	})
	return i, i < len(t.snaps) && t.snaps[i].Position() == pos
}

// MemoryStore is an in-process RatingStore and WPNStore.
type MemoryStore struct {
	mu        sync.RWMutex
	timelines map[model.EntityRef]*timeline

	wpnMu sync.RWMutex
	wpn   map[int]map[string]model.WPNScore

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		timelines: make(map[model.EntityRef]*timeline),
		wpn:       make(map[int]map[string]model.WPNScore),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) get(ref model.EntityRef) (*timeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timelines[ref]
	return t, ok
}

func (s *MemoryStore) getOrCreate(ref model.EntityRef) *timeline {
	if t, ok := s.get(ref); ok {
		return t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timelines[ref]
	if !ok {
		t = &timeline{}
		s.timelines[ref] = t
	}
	return t
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000.0)
}

// LatestAtOrBefore implements RatingStore.
func (s *MemoryStore) LatestAtOrBefore(_ context.Context, ref model.EntityRef, season, week int) (model.Snapshot, error) {
	defer observe("latest_at_or_before", time.Now())
	t, ok := s.get(ref)
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.snaps) - 1; i >= 0; i-- {
		sn := t.snaps[i]
		if sn.Season < season {
			break
		}
		if sn.Season == season && (sn.Preseason || sn.Week <= week) {
			return sn, nil
		}
	}
	return model.Snapshot{}, fmt.Errorf("%w: %s season %d week %d", ErrNotFound, ref, season, week)
}

// LatestBefore implements RatingStore.
func (s *MemoryStore) LatestBefore(_ context.Context, ref model.EntityRef, pos model.Position) (model.Snapshot, error) {
	defer observe("latest_before", time.Now())
	t, ok := s.get(ref)
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, _ := t.find(pos)
	if i == 0 {
		return model.Snapshot{}, fmt.Errorf("%w: %s before season %d week %d", ErrNotFound, ref, pos.Season, pos.Week)
	}
	return t.snaps[i-1], nil
}

// Latest implements RatingStore.
func (s *MemoryStore) Latest(_ context.Context, ref model.EntityRef) (model.Snapshot, error) {
	t, ok := s.get(ref)
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.snaps) == 0 {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return t.snaps[len(t.snaps)-1], nil
}

// Timeline implements RatingStore.
func (s *MemoryStore) Timeline(_ context.Context, ref model.EntityRef) ([]model.Snapshot, error) {
	t, ok := s.get(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Snapshot, len(t.snaps))
	copy(out, t.snaps)
	return out, nil
}

// Upsert implements RatingStore.
func (s *MemoryStore) Upsert(_ context.Context, snap model.Snapshot) error {
	defer observe("upsert", time.Now())
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}
	t := s.getOrCreate(snap.Entity)
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := snap.Position()
	i, exists := t.find(pos)
	var (
		prev  model.Snapshot
		found bool
	)
	if i > 0 && PredecessorScope(snap, t.snaps[i-1]) {
		prev, found = t.snaps[i-1], true
	}
	if err := CheckChain(snap, prev, found); err != nil {
		return err
	}
	if exists {
		t.snaps[i] = snap
		return nil
	}
	t.snaps = append(t.snaps, model.Snapshot{})
	copy(t.snaps[i+1:], t.snaps[i:])
	t.snaps[i] = snap
	return nil
}

// Refs implements RatingStore.
func (s *MemoryStore) Refs(_ context.Context, kind model.EntityKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.timelines))
	for ref, t := range s.timelines {
		if ref.Kind != kind {
			continue
		}
		t.mu.RLock()
		n := len(t.snaps)
		t.mu.RUnlock()
		if n > 0 {
			out = append(out, ref.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ResetSeason implements RatingStore.
func (s *MemoryStore) ResetSeason(_ context.Context, kind model.EntityKind, season int) error {
	defer observe("reset_season", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ref, t := range s.timelines {
		if ref.Kind != kind {
			continue
		}
		t.mu.Lock()
		kept := t.snaps[:0]
		for _, sn := range t.snaps {
			if sn.Season == season && !sn.Preseason {
				continue
			}
			kept = append(kept, sn)
		}
		t.snaps = kept
		t.mu.Unlock()
	}
	return nil
}

// ReplaceWPN implements WPNStore.
func (s *MemoryStore) ReplaceWPN(_ context.Context, season int, scores []model.WPNScore) error {
	m := make(map[string]model.WPNScore, len(scores))
	for _, sc := range scores {
		sc.Season = season
		m[sc.Team] = sc
	}
	s.wpnMu.Lock()
	s.wpn[season] = m
	s.wpnMu.Unlock()
	return nil
}

// WPN implements WPNStore.
func (s *MemoryStore) WPN(_ context.Context, season int) ([]model.WPNScore, error) {
	s.wpnMu.RLock()
	defer s.wpnMu.RUnlock()
	m, ok := s.wpn[season]
	if !ok || len(m) == 0 {
		return nil, fmt.Errorf("%w: wpn season %d", ErrNotFound, season)
	}
	out := make([]model.WPNScore, 0, len(m))
	for _, sc := range m {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out, nil
}

// LatestWPN implements WPNStore.
func (s *MemoryStore) LatestWPN(_ context.Context, team string) (model.WPNScore, error) {
	s.wpnMu.RLock()
	defer s.wpnMu.RUnlock()
	best, found := model.WPNScore{}, false
	for season, m := range s.wpn {
		sc, ok := m[team]
		if !ok {
			continue
		}
		if !found || season > best.Season {
			best, found = sc, true
		}
	}
	if !found {
		return model.WPNScore{}, fmt.Errorf("%w: wpn %s", ErrNotFound, team)
	}
	return best, nil
}

type composite struct {
	RatingStore
	WPNStore
	LeagueReader
}

// Compose joins separate stores into a Store.
func Compose(ratings RatingStore, wpn WPNStore, league LeagueReader) Store {
	return composite{RatingStore: ratings, WPNStore: wpn, LeagueReader: league}
}
