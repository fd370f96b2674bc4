package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/airstrum/internal/adapters/repository"
	"github.com/okian/airstrum/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

func summary(id string, score, combo int, endOffset time.Duration) model.SessionSummary {
	return model.SessionSummary{
		SessionID:    id,
		PlayerID:     "player-" + id,
		Score:        score,
		MaxCombo:     combo,
		PerfectCount: score / 1000,
		StartedAt:    base,
		EndedAt:      base.Add(endOffset),
		Duration:     endOffset,
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory store", t, func() {
		s, err := repository.Open(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer func() { _ = s.Close() }()

		So(s.Count(ctx), ShouldEqual, 0)

		Convey("When the same session is submitted twice", func() {
			first, err1 := s.Submit(ctx, summary("a", 3000, 3, time.Minute))
			second, err2 := s.Submit(ctx, summary("a", 9000, 9, time.Minute))

			Convey("Then only the first submission is kept", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(s.Count(ctx), ShouldEqual, 1)

				e, err := s.Rank(ctx, "a")
				So(err, ShouldBeNil)
				So(e.Score, ShouldEqual, 3000)
				So(e.Duration, ShouldEqual, 60.0)
			})
		})

		Convey("When several sessions are submitted", func() {
			for _, sum := range []model.SessionSummary{
				summary("low", 500, 1, time.Minute),
				summary("late", 4000, 4, 3*time.Minute),
				summary("early", 4000, 4, 2*time.Minute),
				summary("combo", 4000, 6, 5*time.Minute),
				summary("top", 8000, 2, time.Minute),
			} {
				_, err := s.Submit(ctx, sum)
				So(err, ShouldBeNil)
			}

			Convey("Then TopN orders by score, combo, then earliest end", func() {
				top, err := s.TopN(ctx, 10)
				So(err, ShouldBeNil)
				ids := make([]string, 0, len(top))
				for _, e := range top {
					ids = append(ids, e.SessionID)
				}
				So(ids, ShouldResemble, []string{"top", "combo", "early", "late", "low"})
				So(top[0].Rank, ShouldEqual, 1)
				So(top[1].Rank, ShouldEqual, 2)
				So(top[2].Rank, ShouldEqual, 3)
				So(top[3].Rank, ShouldEqual, 3)
				So(top[4].Rank, ShouldEqual, 4)
				So(top[0].PlayerID, ShouldEqual, "player-top")
			})

			Convey("Then a limit truncates the board", func() {
				top, err := s.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
			})

			Convey("Then a session's rank is computed over the whole board", func() {
				e, err := s.Rank(ctx, "late")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 3)
			})
		})

		Convey("When querying unknown or invalid input", func() {
			_, err := s.Rank(ctx, "ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			_, err = s.TopN(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)

			_, err = s.Submit(ctx, summary("", 10, 1, time.Second))
			So(errors.Is(err, repository.ErrInvalid), ShouldBeTrue)
		})
	})

	Convey("Given a file-backed store", t, func() {
		path := filepath.Join(t.TempDir(), "scores.db")
		s, err := repository.Open(ctx, path)
		So(err, ShouldBeNil)
		_, err = s.Submit(ctx, summary("persisted", 1500, 2, time.Minute))
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then submissions survive a reopen", func() {
			reopened, err := repository.Open(ctx, path)
			So(err, ShouldBeNil)
			defer func() { _ = reopened.Close() }()
			So(reopened.Count(ctx), ShouldEqual, 1)
		})
	})

	Convey("Open rejects an empty path", t, func() {
		_, err := repository.Open(ctx, " ")
		So(err, ShouldNotBeNil)
	})
}
