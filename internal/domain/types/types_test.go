package types_test

import (
	"testing"

	"github.com/okian/gridrank/internal/domain/model"
	types "github.com/okian/gridrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRecord(t *testing.T) {
	Convey("Given an empty record", t, func() {
		var r types.Record

		Convey("When adding one of each result", func() {
			r.Add(model.Win)
			r.Add(model.Win)
			r.Add(model.Loss)
			r.Add(model.Tie)

			Convey("Then every bucket is counted", func() {
				So(r, ShouldResemble, types.Record{W: 2, L: 1, T: 1})
			})
		})
	})
}

func TestCoachRecords(t *testing.T) {
	Convey("Given games with shared play calling", t, func() {
		win := model.Game{
			Home: model.Side{Team: "a", Score: 21, Coaches: []model.CoachShare{{Coach: "ann", Plays: 50}, {Coach: "bob", Plays: 10}}},
			Away: model.Side{Team: "b", Score: 7, Coaches: []model.CoachShare{{Coach: "cal", Plays: 60}}},
		}
		tie := model.Game{
			Home: model.Side{Team: "b", Score: 3, Coaches: []model.CoachShare{{Coach: "cal", Plays: 30}, {Coach: "bob", Plays: 30}}},
			Away: model.Side{Team: "a", Score: 3, Coaches: []model.CoachShare{{Coach: "ann", Plays: 60}}},
		}

		Convey("When counting a majority play caller", func() {
			var rec types.CoachRecords
			rec.AddGame(win, "ann")
			rec.AddGame(tie, "ann")

			Convey("Then both games count as primary", func() {
				So(rec.Primary, ShouldResemble, types.Record{W: 1, T: 1})
				So(rec.All, ShouldResemble, types.Record{W: 1, T: 1})
			})
		})

		Convey("When counting a minority or even split caller", func() {
			var rec types.CoachRecords
			rec.AddGame(win, "bob")
			rec.AddGame(tie, "bob")

			Convey("Then only the all record grows", func() {
				So(rec.Primary, ShouldResemble, types.Record{})
				So(rec.All, ShouldResemble, types.Record{W: 1, T: 1})
			})
		})

		Convey("When the coach did not take part", func() {
			var rec types.CoachRecords
			rec.AddGame(win, "dan")

			Convey("Then nothing is counted", func() {
				So(rec.All, ShouldResemble, types.Record{})
			})
		})
	})
}
