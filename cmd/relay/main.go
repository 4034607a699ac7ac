package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/internal/config"
	"github.com/loqui-chat/loqui/internal/metrics"
	"github.com/loqui-chat/loqui/internal/relay"
	"github.com/loqui-chat/loqui/internal/repository"
	"github.com/loqui-chat/loqui/internal/server/ws"
	"github.com/loqui-chat/loqui/internal/transport"
	"github.com/loqui-chat/loqui/pkg/logger"
	"github.com/loqui-chat/loqui/pkg/redis"
)

func main() {
	log, err := logger.New(logger.Config{
		Environment: os.Getenv("APP_ENV"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		ServiceName: "relay",
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Connect(ctx, log, cfg)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := redis.NewClient(redis.Config{
		Host:         cfg.RedisHost,
		Port:         cfg.RedisPort,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
		MaxRetries:   cfg.RedisMaxRetries,
	}, log)
	if err != nil {
		log.Error("redis unavailable", zap.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// Composition: every component is constructed here and wired
	// explicitly; nothing reaches for ambient globals.
	store := repository.NewPostgresStore(db, log)
	sessions := repository.NewSessionRepository(db, log)
	registry := relay.NewRegistry()

	cache := relay.NewRelationshipCache()
	rel, err := store.LoadRelationships(ctx)
	if err != nil {
		log.Error("failed to load relationship snapshot", zap.Error(err))
		os.Exit(1)
	}
	cache.Load(rel.Contacts, rel.Groups)

	dispatcher := relay.NewDispatcher(registry, cache, log)
	subscriber := transport.NewSubscriber(redisClient, cfg.RelayChannel, log)
	go func() {
		if err := subscriber.Run(ctx, dispatcher.OnEvent); err != nil && ctx.Err() == nil {
			log.Error("transport subscriber stopped", zap.Error(err))
		}
	}()

	server := ws.NewServer(ctx, ws.Config{
		Addr:             ":" + cfg.WSPort,
		AllowedOrigins:   cfg.AllowedOrigins,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, registry, sessions, log)

	metricsServer := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	log.Info("relay started, waiting for signal")
	select {
	case err := <-errChan:
		log.Error("server failed", zap.Error(err))
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error during server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error during metrics shutdown", zap.Error(err))
	}
	log.Info("relay stopped")
}
