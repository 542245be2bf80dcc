package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wellbeing-companion/internal/config"
	apihttp "wellbeing-companion/internal/http"
	"wellbeing-companion/internal/llm"
	"wellbeing-companion/internal/repository"
	"wellbeing-companion/internal/safety"
	"wellbeing-companion/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if cfg.LogDevelopment {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	store, err := repository.NewChatStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("chat store", zap.Error(err))
	}
	defer store.Close()

	signals, err := safety.LoadSignals(cfg.CrisisSignalsPath)
	if err != nil {
		logger.Fatal("crisis signals", zap.Error(err))
	}
	classifier := safety.NewClassifier(signals)
	logger.Info("crisis signals loaded", zap.Int("count", classifier.Len()))

	generator, err := llm.NewGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("llm generator", zap.Error(err))
	}

	var (
		events service.EventBus = service.NewMemoryEventBus(logger)
		locker service.TurnLocker
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process turn guard and events", zap.Error(err))
		} else {
			events = service.NewRedisEventBus(redisClient, logger)
			locker = service.NewRedisTurnLocker(redisClient, cfg.LLMTimeout()+30*time.Second, logger)
		}
		cancel()
	}

	manager := service.NewSessionManager(
		store,
		classifier,
		generator,
		events,
		locker,
		logger,
		service.SessionManagerConfig{
			Staleness:         cfg.SessionStaleness(),
			GenerationTimeout: cfg.LLMTimeout(),
			MaxMessageRunes:   cfg.MaxMessageRunes,
		},
	)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTTL())
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	router := apihttp.NewRouter(
		logger,
		cfg.AllowedOrigins,
		jwtSvc,
		apihttp.NewDeviceHandler(logger, jwtSvc),
		apihttp.NewChatHandler(logger, manager),
		apihttp.NewToolHandler(),
		apihttp.NewEventsHandler(logger, events),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", cfg.StoreDriver),
			zap.String("llm_provider", cfg.LLMProvider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout()+5*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
