package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func teamSnap(id string, season, week int, prior, next float64) model.Snapshot {
	return model.Snapshot{Entity: model.TeamRef(id), Season: season, Week: week, PriorRating: prior, NewRating: next}
}

func anchor(id string, season int, rating float64) model.Snapshot {
	return model.Snapshot{Entity: model.TeamRef(id), Season: season, Preseason: true, PriorRating: rating, NewRating: rating}
}

func TestMemoryStoreTimelines(t *testing.T) {
	Convey("Given a store with a team timeline", t, func() {
		ctx := context.Background()
		fixed := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
		s := repository.NewMemoryStore(repository.WithClock(func() time.Time { return fixed }))
		ref := model.TeamRef("t1")

		So(s.Upsert(ctx, anchor("t1", 1, 1500)), ShouldBeNil)
		So(s.Upsert(ctx, teamSnap("t1", 1, 1, 1500, 1510)), ShouldBeNil)
		So(s.Upsert(ctx, teamSnap("t1", 1, 3, 1510, 1505)), ShouldBeNil)

		Convey("Then reads at or before a week skip bye weeks", func() {
			snap, err := s.LatestAtOrBefore(ctx, ref, 1, 2)
			So(err, ShouldBeNil)
			So(snap.NewRating, ShouldEqual, 1510)
			So(snap.UpdatedAt, ShouldEqual, fixed)

			snap, err = s.LatestAtOrBefore(ctx, ref, 1, 0)
			So(err, ShouldBeNil)
			So(snap.Preseason, ShouldBeTrue)
		})

		Convey("Then a season without snapshots is not found", func() {
			_, err := s.LatestAtOrBefore(ctx, ref, 2, 5)
			So(err, ShouldWrap, repository.ErrNotFound)
			_, err = s.Latest(ctx, model.TeamRef("nobody"))
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("Then LatestBefore is strict", func() {
			snap, err := s.LatestBefore(ctx, ref, model.WeekOf(1, 3))
			So(err, ShouldBeNil)
			So(snap.Week, ShouldEqual, 1)
			_, err = s.LatestBefore(ctx, ref, model.PreseasonOf(1))
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("Then the timeline is in position order", func() {
			tl, err := s.Timeline(ctx, ref)
			So(err, ShouldBeNil)
			So(len(tl), ShouldEqual, 3)
			So(tl[0].Preseason, ShouldBeTrue)
			So(tl[2].Week, ShouldEqual, 3)
		})

		Convey("When a week is rewritten", func() {
			So(s.Upsert(ctx, teamSnap("t1", 1, 1, 1500, 1520)), ShouldBeNil)

			Convey("Then it replaces the old snapshot in place", func() {
				tl, _ := s.Timeline(ctx, ref)
				So(len(tl), ShouldEqual, 3)
				So(tl[1].NewRating, ShouldEqual, 1520)
			})
		})

		Convey("When the season is reset", func() {
			So(s.ResetSeason(ctx, model.KindTeam, 1), ShouldBeNil)

			Convey("Then only the preseason anchor is left", func() {
				tl, _ := s.Timeline(ctx, ref)
				So(len(tl), ShouldEqual, 1)
				So(tl[0].Preseason, ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreChain(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()

		Convey("Then a team week without an anchor is rejected", func() {
			err := s.Upsert(ctx, teamSnap("t1", 1, 1, 1500, 1510))
			So(err, ShouldWrap, repository.ErrMissingAnchor)
		})

		Convey("Then a team week must continue from its predecessor", func() {
			So(s.Upsert(ctx, anchor("t1", 1, 1500)), ShouldBeNil)
			err := s.Upsert(ctx, teamSnap("t1", 1, 1, 1490, 1510))
			So(err, ShouldWrap, repository.ErrBrokenChain)
		})

		Convey("Then a new season needs its own anchor", func() {
			So(s.Upsert(ctx, anchor("t1", 1, 1500)), ShouldBeNil)
			So(s.Upsert(ctx, teamSnap("t1", 1, 1, 1500, 1530)), ShouldBeNil)
			err := s.Upsert(ctx, teamSnap("t1", 2, 1, 1530, 1540))
			So(err, ShouldWrap, repository.ErrMissingAnchor)
		})

		Convey("Then a coach starts from the default rating and chains across seasons", func() {
			c := model.CoachRef("c1")
			bad := model.Snapshot{Entity: c, Season: 1, Week: 1, PriorRating: 1400, NewRating: 1410}
			So(s.Upsert(ctx, bad), ShouldWrap, repository.ErrBrokenChain)

			first := model.Snapshot{Entity: c, Season: 1, Week: 1, PriorRating: 1500, NewRating: 1510}
			So(s.Upsert(ctx, first), ShouldBeNil)
			next := model.Snapshot{Entity: c, Season: 2, Week: 1, PriorRating: 1510, NewRating: 1505}
			So(s.Upsert(ctx, next), ShouldBeNil)

			refs, err := s.Refs(ctx, model.KindCoach)
			So(err, ShouldBeNil)
			So(refs, ShouldResemble, []string{"c1"})

			So(s.ResetSeason(ctx, model.KindCoach, 2), ShouldBeNil)
			latest, err := s.Latest(ctx, c)
			So(err, ShouldBeNil)
			So(latest.Season, ShouldEqual, 1)
		})
	})
}

func TestMemoryStoreConcurrentTimelines(t *testing.T) {
	Convey("Given many teams written concurrently", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		var wg sync.WaitGroup
		errs := make(chan error, 64)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := s.Upsert(ctx, anchor(id, 1, 1500)); err != nil {
					errs <- err
					return
				}
				prior := 1500.0
				for w := 1; w <= 4; w++ {
					if err := s.Upsert(ctx, teamSnap(id, 1, w, prior, prior+1)); err != nil {
						errs <- err
						return
					}
					prior++
				}
			}(fmt.Sprintf("t%02d", i))
		}
		wg.Wait()
		close(errs)

		Convey("Then every timeline is complete", func() {
			So(len(errs), ShouldEqual, 0)
			refs, _ := s.Refs(ctx, model.KindTeam)
			So(len(refs), ShouldEqual, 16)
			latest, err := s.Latest(ctx, model.TeamRef("t07"))
			So(err, ShouldBeNil)
			So(latest.NewRating, ShouldEqual, 1504)
		})
	})
}

func TestMemoryStoreWPN(t *testing.T) {
	Convey("Given wPN scores for two seasons", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		So(s.ReplaceWPN(ctx, 1, []model.WPNScore{{Team: "b", Score: 1}, {Team: "a", Score: 2}}), ShouldBeNil)
		So(s.ReplaceWPN(ctx, 2, []model.WPNScore{{Team: "a", Score: 3}}), ShouldBeNil)

		Convey("Then a season lists its scores by team", func() {
			got, err := s.WPN(ctx, 1)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Team, ShouldEqual, "a")
			So(got[0].Season, ShouldEqual, 1)
		})

		Convey("Then the latest score wins", func() {
			a, err := s.LatestWPN(ctx, "a")
			So(err, ShouldBeNil)
			So(a.Score, ShouldEqual, 3)
			b, err := s.LatestWPN(ctx, "b")
			So(err, ShouldBeNil)
			So(b.Season, ShouldEqual, 1)
		})

		Convey("Then replacing a season drops old teams", func() {
			So(s.ReplaceWPN(ctx, 1, []model.WPNScore{{Team: "a", Score: 5}}), ShouldBeNil)
			got, _ := s.WPN(ctx, 1)
			So(len(got), ShouldEqual, 1)
			_, err := s.WPN(ctx, 9)
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}
