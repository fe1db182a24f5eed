package league_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/gridrank/internal/adapters/league"
	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const doc = `
conferences:
  - id: c1
    name: Coastal
    divisions:
      - {id: d1, name: EAST}
teams:
  - {id: t1, name: Tigers, divisions: [d1]}
  - {id: t2, name: Bears, divisions: [d1]}
coaches:
  - {id: u1, username: alice}
seasons:
  - number: 2
    weeks:
      - number: 1
        games:
          - id: g3
            home: {team: t2, score: 3}
            away: {team: t1, score: 0}
            length_seconds: 1680
  - number: 1
    weeks:
      - number: 2
        games:
          - id: g2
            home: {team: t1, score: 14}
            away: {team: t2, score: 7}
            length_seconds: 1680
            live: true
      - number: 1
        games:
          - id: g1
            home: {team: t1, score: 21, coaches: [{coach: u1, plays: 40}]}
            away: {team: t2, score: 14}
            length_seconds: 1800
`

func TestDecode(t *testing.T) {
	Convey("Given a league document", t, func() {
		ctx := context.Background()
		r, err := league.Decode(strings.NewReader(doc))
		So(err, ShouldBeNil)

		Convey("Then seasons come back in number order", func() {
			seasons, err := r.Seasons(ctx)
			So(err, ShouldBeNil)
			So(len(seasons), ShouldEqual, 2)
			So(seasons[0].Number, ShouldEqual, 1)
		})

		Convey("Then weeks are addressable and games carry their week", func() {
			w, err := r.Week(ctx, 1, 1)
			So(err, ShouldBeNil)
			So(w.Games[0].Week, ShouldEqual, 1)
			So(w.Games[0].Home.Coaches[0].Plays, ShouldEqual, 40)
		})

		Convey("Then unknown seasons and weeks are reported", func() {
			_, err := r.Season(ctx, 7)
			So(err, ShouldWrap, repository.ErrSeasonNotFound)
			_, err = r.Week(ctx, 1, 9)
			So(err, ShouldWrap, repository.ErrWeekNotFound)
		})

		Convey("Then team games skip live games", func() {
			games, err := r.GamesByTeamAndSeason(ctx, "t2", 1)
			So(err, ShouldBeNil)
			So(len(games), ShouldEqual, 1)
			So(games[0].ID, ShouldEqual, "g1")
		})

		Convey("Then teams and coaches are listed", func() {
			teams, _ := r.Teams(ctx)
			coaches, _ := r.Coaches(ctx)
			confs, _ := r.Conferences(ctx)
			So(len(teams), ShouldEqual, 2)
			So(teams[0].DivisionFor(1), ShouldEqual, "d1")
			So(coaches[0].Username, ShouldEqual, "alice")
			So(confs[0].Divisions[0].Name, ShouldEqual, "EAST")
		})
	})
}

func TestDecodeRejects(t *testing.T) {
	Convey("Given malformed documents", t, func() {
		Convey("Then unknown fields are rejected", func() {
			_, err := league.Decode(strings.NewReader("teams: []\nplayers: []\n"))
			So(err, ShouldWrap, league.ErrInvalidLeague)
		})

		Convey("Then duplicate seasons are rejected", func() {
			_, err := league.New(model.League{Seasons: []model.Season{{Number: 1}, {Number: 1}}})
			So(err, ShouldWrap, league.ErrInvalidLeague)
		})

		Convey("Then duplicate weeks are rejected", func() {
			_, err := league.New(model.League{Seasons: []model.Season{{Number: 1, Weeks: []model.Week{{Number: 1}, {Number: 1}}}}})
			So(err, ShouldWrap, league.ErrInvalidLeague)
		})

		Convey("Then an empty document is an empty league", func() {
			r, err := league.Decode(&bytes.Buffer{})
			So(err, ShouldBeNil)
			seasons, _ := r.Seasons(context.Background())
			So(seasons, ShouldBeEmpty)
		})
	})
}

func TestSaveLoad(t *testing.T) {
	Convey("Given a league saved to disk", t, func() {
		r, err := league.Decode(strings.NewReader(doc))
		So(err, ShouldBeNil)
		path := filepath.Join(t.TempDir(), "league.yaml")
		So(league.Save(path, r.League()), ShouldBeNil)

		Convey("Then loading it yields the same schedule", func() {
			back, err := league.Load(path)
			So(err, ShouldBeNil)
			So(back.League(), ShouldResemble, r.League())
		})

		Convey("Then a missing file is an error", func() {
			_, err := league.Load(filepath.Join(t.TempDir(), "nope.yaml"))
			So(errors.Is(err, fs.ErrNotExist), ShouldBeTrue)
		})
	})
}
