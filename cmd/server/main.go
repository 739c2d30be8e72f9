// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/tabletop/internal/automa"
	"github.com/jason-s-yu/tabletop/internal/cache"
	"github.com/jason-s-yu/tabletop/internal/config"
	"github.com/jason-s-yu/tabletop/internal/database"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	"github.com/jason-s-yu/tabletop/internal/handlers"
	"github.com/jason-s-yu/tabletop/internal/rating"
	"github.com/jason-s-yu/tabletop/internal/service"
	"github.com/jason-s-yu/tabletop/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.ParseEnv()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	games, err := game.NewRegistry(race.New())
	if err != nil {
		return err
	}

	tables, ratings, closeStore, err := openStore(ctx, cfg, games, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	g, ctx := errgroup.WithContext(ctx)
	hub := events.NewHub(logger)

	var (
		publisher events.Publisher = hub
		scheduler automa.Scheduler
		runAutoma func(context.Context, automa.Handler)
	)
	if cfg.Redis.Enabled() {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		relay := events.NewRelay(cache.NewBus(rdb, cfg.Redis.EventPrefix), hub, logger)
		publisher = relay
		g.Go(func() error { return relay.Run(ctx) })

		rs := automa.NewRedisScheduler(cache.NewDelayQueue(rdb, cfg.Automa.Queue), cfg.Automa.Poll, logger)
		scheduler, runAutoma = rs, rs.Run
	} else {
		ts := automa.NewTimerScheduler()
		scheduler, runAutoma = ts, ts.Run
	}

	svc := service.NewTableService(tables, games, scheduler, publisher, logger, service.Options{
		Retries:         cfg.TableUpdateRetries,
		MaxActiveTables: cfg.MaxActiveTables,
		AutomaDelay:     cfg.Automa.Delay,
		Ratings:         ratings,
	})

	if cfg.Automa.Embedded {
		exec := automa.NewExecutor(tables, svc, logger, cfg.TableUpdateRetries)
		g.Go(func() error {
			runAutoma(ctx, exec.Execute)
			return nil
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(logger, svc, hub, cfg.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":  srv.Addr,
			"store": cfg.TableStore,
			"redis": cfg.Redis.Enabled(),
		}).Info("Running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, games *game.Registry, logger *logrus.Logger) (store.Tables, rating.Store, func(), error) {
	if cfg.TableStore != config.StorePostgres {
		return store.NewMemory(games), rating.NewMemory(), func() {}, nil
	}
	pool, err := database.Connect(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return database.NewTableRepository(pool, games), database.NewRatingRepository(pool), pool.Close, nil
}
