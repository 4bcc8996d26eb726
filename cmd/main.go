package main

import (
	"context"
	"errors"
	"lessonchat/backend/internal/api/handler"
	"lessonchat/backend/internal/chat"
	"lessonchat/backend/internal/chathub"
	"lessonchat/backend/internal/config"
	"lessonchat/backend/internal/events"
	"lessonchat/backend/internal/localization"
	"lessonchat/backend/internal/logger"
	"lessonchat/backend/internal/storage"
	"lessonchat/backend/internal/telegram"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func setupDependencies(ctx context.Context, cfg *config.Config) *storage.Service {
	if cfg.DatabaseURL == "" {
		zap.S().Fatal("DATABASE_URL is not set")
	}

	db, err := storage.Open(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		zap.S().Fatalf("Failed to connect PostgreSQL: %v", err)
	}
	if err := storage.AutoMigrate(db); err != nil {
		zap.S().Fatalf("Failed to run migrations: %v", err)
	}

	s := storage.NewStorageService(db, nil)
	if cfg.Redis.Addr != "" {
		rdb, err := storage.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zap.S().Fatalf("Failed to connect Redis: %v", err)
		}
		s.Redis = rdb
	}

	zap.S().Info("Database connection established, migrations complete.")
	return s
}

// setupSinks builds the optional event consumers.
func setupSinks(cfg *config.Config, users storage.UserDirectory) ([]chathub.EventSink, func()) {
	var sinks []chathub.EventSink
	cleanup := func() {}

	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			zap.S().Fatalf("Failed to start Telegram bot: %v", err)
		}
		loc, err := localization.NewDefaultLocalizer()
		if err != nil {
			zap.S().Fatalf("Failed to load translations: %v", err)
		}
		sinks = append(sinks, telegram.NewNotifier(bot, users, loc, cfg.DeepLinkBase))
		zap.S().Infof("Telegram notifications enabled as @%s", bot.Self.UserName)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		exporter := events.NewKafkaExporter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, exporter)
		cleanup = func() {
			if err := exporter.Close(); err != nil {
				zap.S().Warnf("Failed to close Kafka writer: %v", err)
			}
		}
		zap.S().Infof("Exporting chat events to Kafka topic %s", cfg.Kafka.Topic)
	}

	return sinks, cleanup
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	l, err := logger.New(logger.Config{Development: cfg.Debug})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer l.Sync()

	zap.S().Info("Starting lesson chat backend...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage and transport
	s := setupDependencies(ctx, cfg)
	hub := chathub.NewManagerService()

	var publisher chathub.Publisher = &chathub.LocalPublisher{Hub: hub}
	if s.Redis != nil {
		publisher = s
		hub.StartPubSubListener(ctx, s)
	}

	sinks, closeSinks := setupSinks(cfg, s)
	defer closeSinks()
	gateway := chathub.NewGateway(publisher, cfg.WS.EventQueueSize, sinks...)
	svc := chat.NewService(s, gateway, cfg.DeepLinkBase)

	// 2. Background loops
	go hub.Run(ctx)
	go gateway.Run(ctx)

	// 3. HTTP
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger())
	h := handler.NewHandler(hub, svc, cfg.JWTSecret, cfg.WS)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zap.S().Infof("Listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorf("Graceful shutdown failed: %v", err)
	}
}
