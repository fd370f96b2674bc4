package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		l := New(&buf, slog.LevelDebug)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			l.Info(ctx, "strum detected",
				String("direction", "down"),
				Int("combo", 3),
				Float64("velocity", 42.5),
				Bool("hit", true),
				Duration("elapsed", 250*time.Millisecond),
				Error(errors.New("boom")),
			)

			Convey("Then every field is rendered", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "msg=\"strum detected\"")
				So(out, ShouldContainSubstring, "direction=down")
				So(out, ShouldContainSubstring, "combo=3")
				So(out, ShouldContainSubstring, "velocity=42.5")
				So(out, ShouldContainSubstring, "hit=true")
				So(out, ShouldContainSubstring, "elapsed=250ms")
				So(out, ShouldContainSubstring, "error=boom")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When using a named logger", func() {
			l.Named("judge").Warn(ctx, "late note")

			Convey("Then the component is attached", func() {
				So(buf.String(), ShouldContainSubstring, "component=judge")
				So(buf.String(), ShouldContainSubstring, "level=WARN")
			})
		})
	})

	Convey("Given a logger at warn level", t, func() {
		var buf bytes.Buffer
		l := New(&buf, slog.LevelWarn)
		l.Debug(context.Background(), "hidden")
		l.Info(context.Background(), "hidden too")

		So(buf.Len(), ShouldEqual, 0)
	})
}

func TestGlobal(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		So(Get(), ShouldNotBeNil)
		So(Named("test"), ShouldNotBeNil)
		So(Sync(), ShouldBeNil)

		Convey("Then levels parse case-insensitively", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			So(SetLevelString("warning"), ShouldBeNil)
			So(SetLevelString(""), ShouldBeNil)
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})

	Convey("Nop discards everything", t, func() {
		l := Nop()
		l.Error(context.Background(), "ignored")
		So(l, ShouldNotBeNil)
	})
}
