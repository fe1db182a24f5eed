package repository_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRankIndex(t *testing.T) {
	Convey("Given an index of four teams", t, func() {
		idx := repository.NewRankIndex("team")
		idx.Set("c", "Crows", 1500)
		idx.Set("a", "Ants", 1600)
		idx.Set("b", "Bees", 1500)
		idx.Set("d", "Dogs", 1400)

		Convey("Then TopN orders by rating then id with tied ranks", func() {
			top, err := idx.TopN(10)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 4)
			So(top[0].ID, ShouldEqual, "a")
			So(top[1].ID, ShouldEqual, "b")
			So(top[2].ID, ShouldEqual, "c")
			So(top[1].Rank, ShouldEqual, 2)
			So(top[2].Rank, ShouldEqual, 2)
			So(top[3].Rank, ShouldEqual, 3)
			So(top[3].Name, ShouldEqual, "Dogs")
		})

		Convey("Then a limit below one is rejected", func() {
			_, err := idx.TopN(0)
			So(err, ShouldEqual, repository.ErrInvalidLimit)
		})

		Convey("When a rating moves", func() {
			idx.Set("d", "Dogs", 1700)

			Convey("Then the index reorders", func() {
				e, err := idx.Rank("d")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				So(e.Elo, ShouldEqual, 1700)
				So(idx.Count(), ShouldEqual, 4)
			})
		})

		Convey("When an entity is removed", func() {
			So(idx.Remove("a"), ShouldBeTrue)
			So(idx.Remove("a"), ShouldBeFalse)

			Convey("Then it is no longer ranked", func() {
				_, err := idx.Rank("a")
				So(err, ShouldEqual, repository.ErrNotFound)
				top, _ := idx.TopN(1)
				So(top[0].ID, ShouldEqual, "b")
			})
		})

		Convey("When the index is reset", func() {
			idx.Reset([]types.Entry{{ID: "x", Name: "X", Elo: 1000}})

			Convey("Then only the new entries remain", func() {
				So(idx.Count(), ShouldEqual, 1)
				e, err := idx.Rank("x")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
			})
		})
	})
}

func TestRankIndexConcurrent(t *testing.T) {
	Convey("Given writers and readers running together", t, func() {
		idx := repository.NewRankIndex("coach")
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 250; i++ {
					idx.Set(fmt.Sprintf("c%d-%d", w, i), "", float64(1000+i))
					_, _ = idx.TopN(5)
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every write is visible", func() {
			So(idx.Count(), ShouldEqual, 1000)
			top, err := idx.TopN(4)
			So(err, ShouldBeNil)
			for _, e := range top {
				So(e.Elo, ShouldEqual, 1249)
				So(e.Rank, ShouldEqual, 1)
			}
		})
	})
}
