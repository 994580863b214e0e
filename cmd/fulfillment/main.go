package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-groupbuy/internal/config"
	"github.com/ariefcatur/go-groupbuy/internal/fulfillment"
	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	kafkax "github.com/ariefcatur/go-groupbuy/internal/kafka"
	"github.com/ariefcatur/go-groupbuy/internal/logging"
	"github.com/ariefcatur/go-groupbuy/internal/postgres"
	"github.com/ariefcatur/go-groupbuy/internal/redisx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName+"-fulfillment")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Store != config.StorePostgres {
		log.Fatal("fulfillment needs the shared postgres store", zap.String("store", cfg.Store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	// Redis (dedup)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &fulfillment.Service{
		Tracker: &groupbuy.Tracker{
			Repo:        &postgres.Repository{DB: db},
			Log:         log.Named("tracker"),
			ServiceName: cfg.ServiceName + "-fulfillment",
		},
		Dedup: &redisx.Deduper{Redis: rdb, Service: "fulfillment"},
		Log:   log.Named("fulfillment"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup, groupbuy.TopicGroupCompleted, cfg.FulfillmentWorkers, log.Named("kafka"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("fulfillment consumer started",
			zap.String("group", cfg.FulfillmentGroup),
			zap.String("topic", groupbuy.TopicGroupCompleted),
			zap.Int("workers", cfg.FulfillmentWorkers),
		)
		return cons.Start(gctx, svc.HandleGroupCompleted)
	})
	if err := g.Wait(); err != nil {
		log.Error("consumer exit", zap.Error(err))
	}
	log.Info("fulfillment stopped")
}
