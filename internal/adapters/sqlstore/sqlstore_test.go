package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/adapters/sqlstore"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func openMemory(t *testing.T) *sqlstore.Store {
	t.Helper()
	fixed := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, ":memory:",
		sqlstore.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	Convey("Given an unsupported driver", t, func() {
		_, err := sqlstore.Open(context.Background(), "mysql", "dsn")

		Convey("Then Open refuses it", func() {
			So(err, ShouldWrap, sqlstore.ErrUnknownDriver)
		})
	})
}

func TestRatingTimelines(t *testing.T) {
	Convey("Given a sqlite store with a team timeline", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		ref := model.TeamRef("t1")
		pre := model.Snapshot{Entity: ref, Season: 1, Preseason: true, PriorRating: 1500, NewRating: 1500}
		w1 := model.Snapshot{Entity: ref, Season: 1, Week: 1, Games: []string{"g1"}, OpponentRating: 1480, PriorRating: 1500, NewRating: 1512.5}
		w3 := model.Snapshot{Entity: ref, Season: 1, Week: 3, PriorRating: 1512.5, NewRating: 1501.25}
		So(s.Upsert(ctx, pre), ShouldBeNil)
		So(s.Upsert(ctx, w1), ShouldBeNil)
		So(s.Upsert(ctx, w3), ShouldBeNil)

		Convey("Then reads follow step-function semantics", func() {
			sn, err := s.LatestAtOrBefore(ctx, ref, 1, 2)
			So(err, ShouldBeNil)
			So(sn.NewRating, ShouldEqual, 1512.5)
			So(sn.Games, ShouldResemble, []string{"g1"})
			So(sn.OpponentRating, ShouldEqual, 1480)

			sn, err = s.LatestAtOrBefore(ctx, ref, 1, 0)
			So(err, ShouldBeNil)
			So(sn.Preseason, ShouldBeTrue)

			_, err = s.LatestAtOrBefore(ctx, ref, 2, 1)
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("Then LatestBefore and Latest agree with the memory store", func() {
			sn, err := s.LatestBefore(ctx, ref, model.WeekOf(1, 3))
			So(err, ShouldBeNil)
			So(sn.Week, ShouldEqual, 1)
			_, err = s.LatestBefore(ctx, ref, model.PreseasonOf(1))
			So(err, ShouldWrap, repository.ErrNotFound)
			latest, err := s.Latest(ctx, ref)
			So(err, ShouldBeNil)
			So(latest.Week, ShouldEqual, 3)
			So(latest.UpdatedAt.Equal(time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Then the timeline is ordered with the anchor first", func() {
			tl, err := s.Timeline(ctx, ref)
			So(err, ShouldBeNil)
			So(len(tl), ShouldEqual, 3)
			So(tl[0].Preseason, ShouldBeTrue)
			So(tl[2].Week, ShouldEqual, 3)
		})

		Convey("Then the chain is enforced", func() {
			bad := model.Snapshot{Entity: ref, Season: 1, Week: 4, PriorRating: 1400, NewRating: 1410}
			So(s.Upsert(ctx, bad), ShouldWrap, repository.ErrBrokenChain)
			orphan := model.Snapshot{Entity: model.TeamRef("t2"), Season: 1, Week: 1, PriorRating: 1500, NewRating: 1510}
			So(s.Upsert(ctx, orphan), ShouldWrap, repository.ErrMissingAnchor)
		})

		Convey("When a week is rewritten", func() {
			w1.NewRating = 1520
			So(s.Upsert(ctx, w1), ShouldBeNil)

			Convey("Then the row is replaced", func() {
				tl, _ := s.Timeline(ctx, ref)
				So(len(tl), ShouldEqual, 3)
				So(tl[1].NewRating, ShouldEqual, 1520)
			})
		})

		Convey("When the season is reset", func() {
			So(s.ResetSeason(ctx, model.KindTeam, 1), ShouldBeNil)

			Convey("Then only the anchor remains", func() {
				tl, _ := s.Timeline(ctx, ref)
				So(len(tl), ShouldEqual, 1)
				refs, _ := s.Refs(ctx, model.KindTeam)
				So(refs, ShouldResemble, []string{"t1"})
			})
		})
	})
}

func TestCoachChain(t *testing.T) {
	Convey("Given a coach rated over two seasons", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		c := model.CoachRef("alice")
		So(s.Upsert(ctx, model.Snapshot{Entity: c, Season: 1, Week: 2, PriorRating: 1500, NewRating: 1507}), ShouldBeNil)

		Convey("Then the next season continues from the last rating", func() {
			So(s.Upsert(ctx, model.Snapshot{Entity: c, Season: 2, Week: 1, PriorRating: 1500, NewRating: 1510}), ShouldWrap, repository.ErrBrokenChain)
			So(s.Upsert(ctx, model.Snapshot{Entity: c, Season: 2, Week: 1, PriorRating: 1507, NewRating: 1510}), ShouldBeNil)
			prev, err := s.LatestBefore(ctx, c, model.WeekOf(2, 1))
			So(err, ShouldBeNil)
			So(prev.Season, ShouldEqual, 1)
		})
	})
}

func TestWPNScores(t *testing.T) {
	Convey("Given wPN scores stored for two seasons", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		So(s.ReplaceWPN(ctx, 1, []model.WPNScore{{Team: "b", Score: 0.5, Wins: 1, Losses: 0.5}, {Team: "a", Score: 1.2}}), ShouldBeNil)
		So(s.ReplaceWPN(ctx, 2, []model.WPNScore{{Team: "a", Score: -0.3}}), ShouldBeNil)

		Convey("Then the season reads back ordered by team", func() {
			got, err := s.WPN(ctx, 1)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[1], ShouldResemble, model.WPNScore{Team: "b", Season: 1, Score: 0.5, Wins: 1, Losses: 0.5})
		})

		Convey("Then the latest season wins", func() {
			a, err := s.LatestWPN(ctx, "a")
			So(err, ShouldBeNil)
			So(a.Season, ShouldEqual, 2)
			_, err = s.LatestWPN(ctx, "zzz")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("Then replacing clears the old rows", func() {
			So(s.ReplaceWPN(ctx, 1, nil), ShouldBeNil)
			_, err := s.WPN(ctx, 1)
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestLeagueImport(t *testing.T) {
	Convey("Given an imported league", t, func() {
		ctx := context.Background()
		s := openMemory(t)
		l := model.League{
			Conferences: []model.Conference{{ID: "c1", Name: "Coastal", Divisions: []model.Division{{ID: "d1", Name: "EAST"}, {ID: "d2", Name: "WEST"}}}},
			Teams: []model.Team{
				{ID: "t1", Name: "Tigers", Abbreviation: "TIG", Divisions: []string{"d1", "d2"}},
				{ID: "t2", Name: "Bears", Divisions: []string{"d2"}},
			},
			Coaches: []model.Coach{{ID: "u1", Username: "alice"}},
			Seasons: []model.Season{{Number: 1, Weeks: []model.Week{
				{Number: 1, Name: "Week 1", Games: []model.Game{{
					ID:            "g1",
					Home:          model.Side{Team: "t1", Score: 21, Quarters: []int{7, 7, 0, 7}, Coaches: []model.CoachShare{{Coach: "u1", Plays: 30}, {Coach: "u2", Plays: 10}}},
					Away:          model.Side{Team: "t2", Score: 14},
					LengthSeconds: 1700,
				}}},
				{Number: 2, Games: []model.Game{{ID: "g2", Home: model.Side{Team: "t2"}, Away: model.Side{Team: "t1"}, Live: true}}},
			}}},
		}
		So(s.ImportLeague(ctx, l), ShouldBeNil)

		Convey("Then teams keep their per-season divisions", func() {
			teams, err := s.Teams(ctx)
			So(err, ShouldBeNil)
			So(len(teams), ShouldEqual, 2)
			So(teams[0].Divisions, ShouldResemble, []string{"d1", "d2"})
			So(teams[0].Abbreviation, ShouldEqual, "TIG")
		})

		Convey("Then conferences keep division order", func() {
			confs, err := s.Conferences(ctx)
			So(err, ShouldBeNil)
			So(len(confs), ShouldEqual, 1)
			So(confs[0].Divisions[1].Name, ShouldEqual, "WEST")
			coaches, _ := s.Coaches(ctx)
			So(coaches[0].Username, ShouldEqual, "alice")
		})

		Convey("Then games round-trip with coaches and quarters", func() {
			w, err := s.Week(ctx, 1, 1)
			So(err, ShouldBeNil)
			So(w.Name, ShouldEqual, "Week 1")
			g := w.Games[0]
			So(g.Week, ShouldEqual, 1)
			So(g.Home.Quarters, ShouldResemble, []int{7, 7, 0, 7})
			So(g.Home.Coaches, ShouldResemble, []model.CoachShare{{Coach: "u1", Plays: 30}, {Coach: "u2", Plays: 10}})
			So(g.Away.Coaches, ShouldBeNil)
		})

		Convey("Then live games are kept but skipped by team queries", func() {
			w, _ := s.Week(ctx, 1, 2)
			So(w.Games[0].Live, ShouldBeTrue)
			games, err := s.GamesByTeamAndSeason(ctx, "t1", 1)
			So(err, ShouldBeNil)
			So(len(games), ShouldEqual, 1)
		})

		Convey("Then missing seasons and weeks are reported", func() {
			_, err := s.Season(ctx, 4)
			So(err, ShouldWrap, repository.ErrSeasonNotFound)
			_, err = s.Week(ctx, 1, 7)
			So(err, ShouldWrap, repository.ErrWeekNotFound)
			seasons, err := s.Seasons(ctx)
			So(err, ShouldBeNil)
			So(len(seasons), ShouldEqual, 1)
		})

		Convey("When a league is imported again", func() {
			So(s.ImportLeague(ctx, model.League{Teams: []model.Team{{ID: "t9", Name: "Nine"}}}), ShouldBeNil)

			Convey("Then the old league is gone", func() {
				teams, _ := s.Teams(ctx)
				So(len(teams), ShouldEqual, 1)
				seasons, _ := s.Seasons(ctx)
				So(seasons, ShouldBeEmpty)
			})
		})
	})
}
