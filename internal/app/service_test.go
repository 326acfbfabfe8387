package service_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/okian/zkpresence/internal/adapters/repository"
	service "github.com/okian/zkpresence/internal/app"
	"github.com/okian/zkpresence/internal/config"
	"github.com/okian/zkpresence/internal/domain/dataset"
	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

// cacheEntriesGauge reads the cache size gauge from the process registry.
func cacheEntriesGauge() float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() == "zkpresence_cache_entries" && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return -1
}

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// stubSource serves fixed datasets, optionally holding every load until
// release is closed.
type stubSource struct {
	data    map[string]model.Dataset
	release chan struct{}
}

func (s *stubSource) Load(ctx context.Context, location string) (model.Dataset, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	ds, ok := s.data[location]
	if !ok {
		return nil, errors.New("no such dataset")
	}
	return ds, nil
}

type pinnedRand struct{ v int }

func (p pinnedRand) Intn(int) int { return p.v }

func fixtureSource() *stubSource {
	return &stubSource{data: map[string]model.Dataset{
		"s0": {
			{Username: "alice", Mindshare: "5%", PFP: "https://img/alice.png"},
			{Username: "bob", Mindshare: "3%"},
			{Username: "carol", Mindshare: "1%"},
		},
		"s1": {
			{Username: "alice", Mindshare: "2%"},
			{Username: "dave", Mindshare: "4%"},
		},
	}}
}

func newService(src dataset.Source, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithSeasonURLs("s0", "s1"),
		service.WithSource(src),
		service.WithRandomSource(pinnedRand{v: 7}),
	}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["cache_driver"], ShouldEqual, config.CacheDriverMemory)
			So(stats["await_datasets"], ShouldEqual, false)
		})
	})

	Convey("Given options built from config", t, func() {
		cfg := config.New(context.Background())
		cfg.CacheDriver = config.CacheDriverMemory
		cfg.AwaitDatasets = true
		svc := service.New(service.FromConfig(cfg)...)

		Convey("Then they should be applied", func() {
			stats := svc.GetStats(context.Background())
			So(stats["await_datasets"], ShouldEqual, true)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := newService(fixtureSource())

		Convey("When scoring before start", func() {
			_, err := svc.Score(ctx, "alice")

			Convey("Then it should report not started", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)
			defer svc.Stop()

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats(ctx)["started"], ShouldEqual, true)
			})

			Convey("And starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				_, err := svc.Score(ctx, "alice")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When restarting on an injected cache backend", func() {
			kv := repository.NewMemoryKV()
			owned := newService(fixtureSource(), service.WithKV(kv))

			So(owned.Start(ctx), ShouldBeNil)
			So(owned.WaitForDatasets(ctx), ShouldBeNil)
			first, err := owned.Score(ctx, "alice")
			So(err, ShouldBeNil)
			owned.Stop()

			So(owned.Start(ctx), ShouldBeNil)
			defer owned.Stop()
			second, err := owned.Score(ctx, "alice")

			Convey("Then the backend should stay open and keep its entries", func() {
				So(err, ShouldBeNil)
				So(second, ShouldResemble, first)
				n, lenErr := kv.Len(ctx)
				So(lenErr, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When the cache driver is unknown", func() {
			bad := newService(fixtureSource(), service.WithCacheDriver("redis", ""))
			err := bad.Start(ctx)

			Convey("Then start should fail", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestService_Score(t *testing.T) {
	Convey("Given a started service with loaded datasets", t, func() {
		ctx := context.Background()
		svc := newService(fixtureSource())
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.WaitForDatasets(ctx), ShouldBeNil)

		Convey("When scoring a user in both seasons", func() {
			r, err := svc.Score(ctx, "  @Alice ")

			Convey("Then the input should be sanitized and scored", func() {
				So(err, ShouldBeNil)
				So(r, ShouldResemble, model.PresenceResult{
					PFP:           "https://img/alice.png",
					Username:      "Alice",
					Consistency:   100,
					Effectiveness: 67,
					UnionMaxi:     80,
					Score:         82,
				})
			})
		})

		Convey("When scoring a single-season user twice with different casing", func() {
			first, err1 := svc.Score(ctx, "bob")
			second, err2 := svc.Score(ctx, "@BOB")

			Convey("Then the cached record should be returned", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
				So(first.Effectiveness, ShouldEqual, 40)
			})
		})

		Convey("When scoring an unknown user", func() {
			r, err := svc.Score(ctx, "nonexistent_user_xyz")

			Convey("Then the result should be all zero with the fallback avatar", func() {
				So(err, ShouldBeNil)
				So(r.IsZero(), ShouldBeTrue)
				So(r.PFP, ShouldEqual, "https://unavatar.io/twitter/nonexistent_user_xyz")
			})

			Convey("And the cache should now hold it", func() {
				So(svc.GetStats(ctx)["cache_entries"], ShouldEqual, 1)
				So(cacheEntriesGauge(), ShouldEqual, 1)
			})
		})

		Convey("When the input sanitizes to nothing", func() {
			for _, raw := range []string{"", "   ", "@", " @ "} {
				_, err := svc.Score(ctx, raw)
				So(errors.Is(err, service.ErrEmptyUsername), ShouldBeTrue)
			}
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats(ctx)
			ds, ok := stats["datasets"].(dataset.Stats)

			Convey("Then both seasons should be reported", func() {
				So(ok, ShouldBeTrue)
				So(ds.Ready, ShouldBeTrue)
				So(ds.Seasons[model.S0].Records, ShouldEqual, 3)
				So(ds.Seasons[model.S1].Records, ShouldEqual, 2)
				So(ds.LoadID, ShouldNotBeEmpty)
			})
		})
	})
}

func TestService_LoadRace(t *testing.T) {
	Convey("Given datasets that are still loading", t, func() {
		ctx := context.Background()
		src := fixtureSource()
		src.release = make(chan struct{})

		Convey("When scoring does not wait", func() {
			svc := newService(src)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			early, err := svc.Score(ctx, "alice")
			So(err, ShouldBeNil)
			close(src.release)
			So(svc.WaitForDatasets(ctx), ShouldBeNil)
			late, _ := svc.Score(ctx, "alice")

			Convey("Then the early not-found result should stay cached", func() {
				So(early.IsZero(), ShouldBeTrue)
				So(late, ShouldResemble, early)
			})
		})

		Convey("When scoring waits for the load", func() {
			svc := newService(src, service.WithAwaitDatasets(true, 2*time.Second))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			go func() {
				time.Sleep(20 * time.Millisecond)
				close(src.release)
			}()
			r, err := svc.Score(ctx, "alice")

			Convey("Then the user should be found", func() {
				So(err, ShouldBeNil)
				So(r.Score, ShouldEqual, 82)
			})
		})

		Convey("When the service stops mid-load", func() {
			svc := newService(src)
			So(svc.Start(ctx), ShouldBeNil)

			done := make(chan struct{})
			go func() {
				svc.Stop()
				close(done)
			}()

			Convey("Then stop should not hang", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					So("stop timed out", ShouldBeEmpty)
				}
			})
		})

		Convey("When waiting with an expired context", func() {
			svc := newService(src)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			wctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()

			Convey("Then the wait should give up", func() {
				So(errors.Is(svc.WaitForDatasets(wctx), context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}

func TestService_ConcurrentFirstRequests(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(fixtureSource(), service.WithRandomSource(rand.New(rand.NewSource(1))))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.WaitForDatasets(ctx), ShouldBeNil)

		Convey("When many requests score the same single-season user at once", func() {
			const n = 16
			results := make([]model.PresenceResult, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = svc.Score(ctx, "carol")
				}(i)
			}
			wg.Wait()

			Convey("Then they should all see one stored result", func() {
				for i := 1; i < n; i++ {
					So(results[i], ShouldResemble, results[0])
				}
			})
		})
	})
}
