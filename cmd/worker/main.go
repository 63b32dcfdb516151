package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/alerts"
	"github.com/veridian/comply/internal/api"
	"github.com/veridian/comply/internal/config"
	"github.com/veridian/comply/internal/duedate"
	"github.com/veridian/comply/internal/engine"
	"github.com/veridian/comply/internal/queue"
	"github.com/veridian/comply/internal/rules"
	"github.com/veridian/comply/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	q, err := queue.New(queue.Config{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer q.Close()

	eng := engine.New(
		st,
		rules.NewCatalog(rules.NewPostgresStore(st.DB())),
		duedate.NewCalculator(api.BuildCalendar(cfg.Calendar)),
		alerts.NewEmitter(st,
			decimal.NewFromFloat(cfg.Engine.PenaltyMaterialityRatio),
			decimal.NewFromFloat(cfg.Engine.PenaltyMaterialityFloor),
			logger),
		engine.Options{
			AmberScoreThreshold: cfg.Engine.AmberScoreThreshold,
			NoiseThreshold:      cfg.Engine.NoiseThreshold,
			CalcTimeout:         cfg.Engine.CalcTimeout,
		},
		logger,
	)

	worker := queue.NewWorker(queue.WorkerConfig{
		Queue:       q,
		Engine:      eng,
		Concurrency: cfg.Engine.WorkerConcurrency,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	worker.Stop()
}
