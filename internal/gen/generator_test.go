package gen_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/internal/gen"
	"github.com/okian/amplike/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	convey.Convey("Given a generator config", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		cfg := &gen.Config{NumEvents: 10_000, Seed: 9, Param: 12.5, Workers: 1}

		convey.Convey("Then the output does not depend on the worker count", func() {
			one, err := gen.Generate(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)

			cfg.Workers = 7
			many, err := gen.Generate(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(many, convey.ShouldResemble, one)
		})

		convey.Convey("Then events look like 2 -> 2 invariants", func() {
			evs, err := gen.Generate(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(evs), convey.ShouldEqual, 10_000)
			for _, ev := range evs {
				if ev.S < 1 || ev.S >= 100 || ev.T > 0 || ev.P != 12.5 || !ev.Finite() {
					t.Fatalf("unexpected event %+v", ev)
				}
			}
		})

		convey.Convey("Then a non-positive count is rejected", func() {
			cfg.NumEvents = 0
			_, err := gen.Generate(ctx, cfg)
			convey.So(errors.Is(err, gen.ErrInvalidCount), convey.ShouldBeTrue)
		})

		convey.Convey("Then a canceled context stops generation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := gen.Generate(cctx, cfg)
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})
	})
}

func TestWrite(t *testing.T) {
	convey.Convey("Given written events", t, func() {
		evs := []model.Event{
			{S: 10, T: -5, U: -5, P: 2.5},
			{S: 0.1, T: -1e-9, U: 1.0 / 3, P: 2.5},
		}
		var buf bytes.Buffer
		n, err := gen.Write(context.Background(), &buf, evs)

		convey.So(err, convey.ShouldBeNil)
		convey.So(n, convey.ShouldEqual, int64(buf.Len()))
		convey.So(strings.SplitN(buf.String(), "\n", 2)[0], convey.ShouldEqual, "10 -5 -5 2.5")

		convey.Convey("Then the reader parses them back exactly", func() {
			store := events.New()
			_, err := store.Load(context.Background(), events.NewReaderSource(&buf), len(evs))
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.At(0), convey.ShouldResemble, evs[0])
			convey.So(store.At(1), convey.ShouldResemble, evs[1])
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given an output path", t, func() {
		_ = logger.Init()
		path := filepath.Join(t.TempDir(), "events.txt")

		stats, err := gen.Run(context.Background(), &gen.Config{Output: path, NumEvents: 5000, Seed: 1, Param: 30, Workers: 3})

		convey.So(err, convey.ShouldBeNil)
		convey.So(stats.Output, convey.ShouldEqual, path)
		convey.So(stats.EventsGenerated, convey.ShouldEqual, 5000)
		convey.So(stats.RunID, convey.ShouldNotBeBlank)

		info, err := os.Stat(path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(info.Size(), convey.ShouldEqual, stats.BytesWritten)

		convey.Convey("Then the file loads into a store", func() {
			src, err := events.OpenFile(path)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = src.Close() }()
			store := events.New(events.WithCapacity(5000))
			n, err := store.Load(context.Background(), src, 5000)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 5000)
			convey.So(store.At(0).P, convey.ShouldEqual, 30.0)
		})
	})
}
