package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dutyfree/internal/config"
	"dutyfree/internal/infra"
	"dutyfree/internal/repository"
	"dutyfree/internal/router"
	"dutyfree/internal/service"
	"dutyfree/internal/worker"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	} else {
		log.Warn().Msg("REDIS_URL is empty; receipts render in-process")
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatal().Err(err).Int64("node_id", cfg.NodeID).Msg("invalid snowflake node")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Receipt rendering. Workers are wired here (composition root) so they
	// reach the repositories without going through the services.
	receiptRepo := repository.NewReceiptRepository(db)
	receiptWorker := worker.NewReceiptWorker(worker.ReceiptWorkerConfig{
		Receipts:    receiptRepo,
		Sales:       repository.NewSaleRepository(db),
		Products:    repository.NewProductRepository(db),
		RDB:         rdb,
		StoragePath: cfg.ReceiptStoragePath,
		ShopName:    cfg.ShopName,
		MaxRetries:  cfg.ReceiptMaxRetries,
	})
	receiptCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("receipt-queue"))

	var (
		queue service.ReceiptQueue
		pool  *worker.Pool
		local *worker.LocalQueue
	)
	if rdb != nil {
		queue = worker.NewDispatcher(rdb)
		pool = worker.NewPool(rdb)
		pool.Handle(worker.QueueReceipts, worker.JobTypeReceipt, receiptWorker.Handle)
		pool.Start(ctx, cfg.WorkerPoolSize)
	} else {
		local = worker.NewLocalQueue(ctx, receiptWorker)
		queue = local
	}
	worker.StartReceiptSweeper(ctx, worker.SweeperConfig{
		Receipts: receiptRepo,
		Queue:    queue,
		CB:       receiptCB,
	})

	r := router.New(cfg, router.Deps{
		DB:           db,
		Redis:        rdb,
		ReceiptCB:    receiptCB,
		ReceiptQueue: queue,
		Node:         node,
		Registry:     reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("duty-free backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	if local != nil {
		local.Wait()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
