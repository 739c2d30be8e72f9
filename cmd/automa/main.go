// cmd/automa/main.go is a worker that claims due computer turns from the Redis
// delay queue and plays them against the PostgreSQL table store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/tabletop/internal/automa"
	"github.com/jason-s-yu/tabletop/internal/cache"
	"github.com/jason-s-yu/tabletop/internal/config"
	"github.com/jason-s-yu/tabletop/internal/database"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	"github.com/jason-s-yu/tabletop/internal/service"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.ParseEnv()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()
	if !cfg.Redis.Enabled() || cfg.TableStore != config.StorePostgres {
		logger.Fatal("automa worker needs REDIS_ADDR and TABLE_STORE=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("automa worker exited")
	}
	logger.Info("automa worker shutting down")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	games, err := game.NewRegistry(race.New())
	if err != nil {
		return err
	}

	pool, err := database.Connect(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	tables := database.NewTableRepository(pool, games)

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// events still reach API servers' websocket streams through the bus
	hub := events.NewHub(logger)
	relay := events.NewRelay(cache.NewBus(rdb, cfg.Redis.EventPrefix), hub, logger)
	scheduler := automa.NewRedisScheduler(cache.NewDelayQueue(rdb, cfg.Automa.Queue), cfg.Automa.Poll, logger)

	svc := service.NewTableService(tables, games, scheduler, relay, logger, service.Options{
		Retries:         cfg.TableUpdateRetries,
		MaxActiveTables: cfg.MaxActiveTables,
		AutomaDelay:     cfg.Automa.Delay,
		Ratings:         database.NewRatingRepository(pool),
	})
	exec := automa.NewExecutor(tables, svc, logger, cfg.TableUpdateRetries)

	logger.WithFields(logrus.Fields{
		"queue": cfg.Automa.Queue,
		"poll":  cfg.Automa.Poll,
	}).Info("automa worker started")
	scheduler.Run(ctx, exec.Execute)
	return nil
}
