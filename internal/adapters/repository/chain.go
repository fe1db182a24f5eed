package repository

import (
	"fmt"
	"math"

	"github.com/okian/gridrank/internal/domain/model"
)

const chainTolerance = 1e-9

// CheckChain validates snap against its predecessor. For teams prev must be
// the latest snapshot strictly before snap inside the same season; for coaches
// it is the latest snapshot strictly before snap in any season. found reports
// whether such a predecessor exists.
func CheckChain(snap model.Snapshot, prev model.Snapshot, found bool) error {
	if snap.Preseason {
		return nil
	}
	want := model.DefaultRating
	switch snap.Entity.Kind {
	case model.KindTeam:
		if !found {
			return fmt.Errorf("%w: %s season %d", ErrMissingAnchor, snap.Entity, snap.Season)
		}
		want = prev.NewRating
	default:
		if found {
			want = prev.NewRating
		}
	}
	if math.Abs(snap.PriorRating-want) > chainTolerance {
		return fmt.Errorf("%w: %s season %d week %d prior %.6f want %.6f",
			ErrBrokenChain, snap.Entity, snap.Season, snap.Week, snap.PriorRating, want)
	}
	return nil
}

// PredecessorScope reports whether candidate may serve as snap's predecessor
// in CheckChain.
func PredecessorScope(snap, candidate model.Snapshot) bool {
	if !candidate.Position().Before(snap.Position()) {
		return false
	}
	if snap.Entity.Kind == model.KindTeam {
		return candidate.Season == snap.Season
	}
	return true
}
