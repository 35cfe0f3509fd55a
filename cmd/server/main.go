package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devboard/devboard/internal/access"
	"github.com/devboard/devboard/internal/cache"
	"github.com/devboard/devboard/internal/config"
	"github.com/devboard/devboard/internal/handler"
	"github.com/devboard/devboard/internal/hub"
	"github.com/devboard/devboard/internal/kafka"
	"github.com/devboard/devboard/internal/repository"
	"github.com/devboard/devboard/internal/service"
	"github.com/devboard/devboard/pkg/database"
	"github.com/devboard/devboard/pkg/jwt"
	pkglog "github.com/devboard/devboard/pkg/log"
	"github.com/devboard/devboard/pkg/middleware"
	"github.com/devboard/devboard/pkg/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	users := repository.NewGormUserRepository(db)
	projects := repository.NewGormProjectRepository(db)
	boards := repository.NewGormBoardRepository(db)
	messages := repository.NewGormMessageRepository(db)

	tokens := jwt.NewManager(cfg.Auth.Secret, cfg.Auth.AccessDuration, cfg.Auth.RefreshDuration, cfg.Auth.Issuer)

	var decisions cache.DecisionCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisDecisionCache(cfg.Cache.Redis, "access")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect decision cache")
		}
		defer redisCache.Close()
		decisions = redisCache
	}
	checker := access.NewChecker(projects, decisions, cfg.Cache.TTL)

	bus, err := pubsub.New(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pubsub")
	}
	defer bus.Close()

	var producer kafka.MessageEventProducer
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			// The archive is an optional sink; the server runs without it.
			logger.Warn().Err(err).Msg("kafka producer unavailable, archiving disabled")
		} else {
			producer = p
			defer p.Close()
		}
	}

	h := hub.New(hub.Config{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	})
	go h.Run()

	realtime := service.NewRealtimeService(h, messages, checker, bus, producer,
		cfg.Chat.HistoryLimit, cfg.Chat.MaxCallPeers)
	if err := realtime.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to start realtime service")
	}
	defer realtime.Stop()

	authSvc := service.NewAuthService(users, tokens)
	projectSvc := service.NewProjectService(projects, boards, users, checker, h, realtime)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	authMW := middleware.NewAuthMiddleware(tokens)
	handler.NewHTTPHandler(authSvc, projectSvc, authMW).RegisterRoutes(router)
	handler.NewWSHandler(h, tokens, realtime).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}
