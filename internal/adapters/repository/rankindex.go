package repository

import (
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gridrank/internal/domain/types"
	"github.com/okian/gridrank/pkg/metrics"
)

// Treap-based, in-memory leaderboard.
//
// Ordering: rating DESC, then id ASC (deterministic). "less" means ranks
// earlier, so in-order traversal yields the leaderboard from best to worst.

// ratingScale controls fixed-point scaling from float64.
const ratingScale = 1_000_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * ratingScale
	if scaled >= float64(math.MaxInt64) {
		return ratingFP(math.MaxInt64)
	}
	if scaled <= float64(math.MinInt64) {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(scaled))
}

func toFloat(x ratingFP) float64 {
	return float64(x) / ratingScale
}

// record is what the index knows about one entity.
type record struct {
	rating ratingFP
	name   string
}

// rankSnapshot is an immutable view of the ordered leaderboard.
type rankSnapshot struct {
	entries []types.Entry
	byID    map[string]int
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// idPriority derives a stable heap priority from the id so the tree shape
// does not follow the rating order.
func idPriority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: idPriority(id), size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit ids in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// RankIndex orders entities by rating for leaderboard reads. Writes mark the
// published snapshot stale; the next read rebuilds it.
type RankIndex struct {
	kind string

	mu   sync.RWMutex
	root *node
	byID map[string]record

	snapshot atomic.Pointer[rankSnapshot]
}

// NewRankIndex returns an empty index. kind labels its metrics.
func NewRankIndex(kind string) *RankIndex {
	return &RankIndex{kind: kind, byID: make(map[string]record)}
}

// Set inserts id or moves it to rating.
func (r *RankIndex) Set(id, name string, rating float64) {
	fp := toFixedPoint(rating)
	r.mu.Lock()
	if old, ok := r.byID[id]; ok {
		r.root = deleteNode(r.root, id, old.rating)
	}
	r.byID[id] = record{rating: fp, name: name}
	r.root = insert(r.root, id, fp)
	n := len(r.byID)
	r.snapshot.Store(nil)
	r.mu.Unlock()
	metrics.UpdateTrackedEntities(r.kind, n)
}

// Remove drops id. It reports whether id was present.
func (r *RankIndex) Remove(id string) bool {
	r.mu.Lock()
	old, ok := r.byID[id]
	if ok {
		r.root = deleteNode(r.root, id, old.rating)
		delete(r.byID, id)
		r.snapshot.Store(nil)
	}
	n := len(r.byID)
	r.mu.Unlock()
	metrics.UpdateTrackedEntities(r.kind, n)
	return ok
}

// Reset replaces the whole index with entries.
func (r *RankIndex) Reset(entries []types.Entry) {
	r.mu.Lock()
	r.root = nil
	r.byID = make(map[string]record, len(entries))
	for _, e := range entries {
		fp := toFixedPoint(e.Elo)
		if old, ok := r.byID[e.ID]; ok {
			r.root = deleteNode(r.root, e.ID, old.rating)
		}
		r.byID[e.ID] = record{rating: fp, name: e.Name}
		r.root = insert(r.root, e.ID, fp)
	}
	n := len(r.byID)
	r.snapshot.Store(nil)
	r.mu.Unlock()
	metrics.UpdateTrackedEntities(r.kind, n)
}

// Rank returns id's leaderboard entry.
func (r *RankIndex) Rank(id string) (types.Entry, error) {
	defer observe("rank", time.Now())
	snap := r.current()
	i, ok := snap.byID[id]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	return snap.entries[i], nil
}

// TopN returns the best n entries. n must be positive.
func (r *RankIndex) TopN(n int) ([]types.Entry, error) {
	defer observe("top_n", time.Now())
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap := r.current()
	if n > len(snap.entries) {
		n = len(snap.entries)
	}
	out := make([]types.Entry, n)
	copy(out, snap.entries[:n])
	return out, nil
}

// Count returns the number of indexed entities.
func (r *RankIndex) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *RankIndex) current() *rankSnapshot {
	if s := r.snapshot.Load(); s != nil {
		return s
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]*node, 0, len(r.byID))
	collectTopN(r.root, len(r.byID), &nodes)
	snap := &rankSnapshot{
		entries: make([]types.Entry, len(nodes)),
		byID:    make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		snap.entries[i] = types.Entry{ID: n.id, Name: r.byID[n.id].name, Elo: toFloat(n.rating)}
		snap.byID[n.id] = i
	}
	assignRanksWithTies(snap.entries)
	r.snapshot.Store(snap)
	return snap
}

// assignRanksWithTies gives equal ratings the same rank; the next rank
// follows consecutively.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Elo != entries[i-1].Elo {
			rank++
		}
		entries[i].Rank = rank
	}
}
