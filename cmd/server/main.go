package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/auth"
	"github.com/Raulcadiz/Carnavalix/internal/chat"
	"github.com/Raulcadiz/Carnavalix/internal/config"
	"github.com/Raulcadiz/Carnavalix/internal/dbconfig"
	"github.com/Raulcadiz/Carnavalix/internal/events"
	"github.com/Raulcadiz/Carnavalix/internal/gateway"
	"github.com/Raulcadiz/Carnavalix/internal/httpapi"
	"github.com/Raulcadiz/Carnavalix/internal/livechannel"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbconfig.Connect(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", cfg.NATS.URL).
		Str("addr", cfg.Server.Addr).
		Msg("starting carnavalplay server")

	clock := clockwork.NewRealClock()

	// Live event bus
	publisherCfg := events.DefaultJetStreamConfig()
	publisherCfg.URL = cfg.NATS.URL
	publisherCfg.StreamName = cfg.NATS.StreamName
	publisher, err := events.NewJetStreamPublisher(publisherCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	// Live channel
	liveRepo := livechannel.NewRepository(livechannel.NewPGQueries(pool))
	liveService := livechannel.NewService(liveRepo, publisher, clock)
	monitor := livechannel.NewMonitor(liveService, liveRepo, clock, livechannel.MonitorConfig{
		Interval: cfg.Live.MonitorInterval,
		EndGrace: cfg.Live.EndGrace,
	})
	go monitor.Run(ctx)

	// Presence registry
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	presence, err := chat.NewRedisPresence(redisClient, chat.DefaultPresenceConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	go presence.RunHeartbeat(ctx)

	// Chat
	chatRepo := chat.NewRepository(chat.NewPGQueries(pool))
	chatService := chat.NewService(chatRepo, clock)

	// Gateway
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), chatService, presence)
	go connectionManager.Start(ctx)

	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = cfg.NATS.URL
	consumerCfg.StreamName = cfg.NATS.StreamName
	consumer, err := gateway.NewEventConsumer(connectionManager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()
	defer consumer.Stop()

	// Carnival bot
	bot := chat.NewBot(chatService, connectionManager, gateway.ChatFrame, clock, cfg.Chat.BotInterval)
	go bot.Run(ctx)

	// Auth
	authRepo := auth.NewRepository(auth.NewPGQueries(pool))
	authService := auth.NewService(authRepo, auth.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	}, clock)

	// HTTP
	wsHandler := gateway.NewWebSocketHandler(connectionManager)
	server := httpapi.NewServer(liveService, chatService, presence, authService, wsHandler, cfg.Server.AllowedOrigins)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	if err := httpServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
