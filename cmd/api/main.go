package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-groupbuy/internal/auth"
	"github.com/ariefcatur/go-groupbuy/internal/config"
	"github.com/ariefcatur/go-groupbuy/internal/groupbuy"
	"github.com/ariefcatur/go-groupbuy/internal/httpx"
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
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := &groupbuy.Tracker{Log: log.Named("tracker"), ServiceName: cfg.ServiceName}

	// Store
	switch cfg.Store {
	case config.StoreMemory:
		tracker.Repo = groupbuy.NewMemoryRepository()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		tracker.Repo = &postgres.Repository{DB: db}
	}

	// Redis: product cache + join idempotency
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, cache and idempotency disabled", zap.Error(err))
		} else {
			tracker.Repo = &redisx.CachedRepository{Repository: tracker.Repo, Redis: rdb, TTL: cfg.CacheTTL, Log: log.Named("cache")}
			tracker.Idempotency = &redisx.IdempotencyStore{Redis: rdb}
		}
	}

	// Kafka producer
	var prod *kafkax.Producer
	if cfg.KafkaEnabled {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("kafka"))
		prod.Start(context.Background())
		tracker.Events = kafkax.NewPublisher(prod)
	}

	authSvc := &auth.Service{
		AdminEmail:   cfg.AdminEmail,
		PasswordHash: []byte(cfg.AdminPasswordHash),
		Secret:       []byte(cfg.JWTSecret),
		TTL:          cfg.JWTTTL,
	}
	if cfg.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH not set; admin login is disabled")
	}
	if cfg.JWTSecret == "" {
		authSvc.Secret = make([]byte, 32)
		_, _ = rand.Read(authSvc.Secret)
		log.Warn("JWT_SECRET not set; using a random secret, tokens die with the process")
	}

	router := httpx.NewRouter(log.Named("http"))
	httpx.Mount(router, tracker, authSvc, log.Named("http"))
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server exit", zap.Error(err))
	}

	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
}
