// Package app wires the full service graph for a chat process. The manager
// and resident binaries share everything except the party type whose
// sessions they host.
package app

import (
	"context"

	"housing-chat/config"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/handler"
	"housing-chat/internal/identity"
	"housing-chat/internal/presence"
	appredis "housing-chat/internal/redis"
	"housing-chat/internal/relay"
	"housing-chat/internal/repository"
	"housing-chat/internal/server"
	"housing-chat/internal/services"
	"housing-chat/internal/storage"
	"housing-chat/internal/websocket"
	"housing-chat/pkg/database"
	"housing-chat/pkg/events"
	"housing-chat/pkg/logger"
)

// Run boots a chat process hosting sessions for the given party type and
// blocks until shutdown.
func Run(hostedType party.Type) error {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	log := logger.New(mode)
	logger.SetGlobalLogger(log)

	database.Connect(cfg)
	db := database.DB

	appredis.Initialize(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisClient := appredis.GetClient()

	residents := repository.NewResidentRepository(db)
	managers := repository.NewManagerRepository(db)
	houses := repository.NewHouseRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)

	var broker events.Broker
	if cfg.RelayDriver == config.RelayDriverKafka {
		broker = events.NewKafkaBroker(cfg.KafkaBrokers)
		log.Infof("event relay using kafka brokers %v", cfg.KafkaBrokers)
	} else {
		broker = events.NewRedisBroker(redisClient)
		log.Infof("event relay using redis at %s:%s", cfg.RedisHost, cfg.RedisPort)
	}

	publisher := relay.NewEventPublisher(broker, log)
	presenceStore := presence.NewRepositoryStore(residents, managers, publisher, log)

	// Presence rows survive a crash with stale online flags. Clear them
	// before accepting connections.
	if err := presenceStore.ResetAllOffline(context.Background()); err != nil {
		log.Errorf("failed to reset presence flags: %v", err)
	}

	var avatars *storage.AvatarResolver
	if cfg.S3Bucket != "" {
		var err error
		avatars, err = storage.NewAvatarResolver(context.Background(), storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Errorf("avatar storage disabled: %v", err)
		}
	}

	directory := services.NewPartyDirectory(residents, managers)
	chatService := services.NewChatService(conversations, messages, directory, presenceStore, publisher, avatars, log)
	sidebarService := services.NewSidebarService(conversations, messages, residents, managers, houses, directory, avatars, log)

	hub := websocket.NewHub()
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	dispatcher := relay.NewDispatcher(hostedType, broker, presenceStore, hub, log)
	go func() {
		if err := dispatcher.Run(hubCtx); err != nil && hubCtx.Err() == nil {
			log.Errorf("relay dispatcher stopped: %v", err)
		}
	}()

	resolver := identity.NewJWTResolver(cfg.JWTSecret)
	limiter := appredis.NewRateLimiter(redisClient, appredis.DefaultRateLimitConfig())
	authorizer := websocket.NewChannelAuthorizer(conversations)
	wsHandler := websocket.NewHandler(resolver, hub, authorizer, presenceStore, limiter, log)
	chatHandler := handler.NewChatHandler(chatService, sidebarService)

	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{Chat: chatHandler, WS: wsHandler}, resolver, limiter)

	log.Infof("chat process hosting %s sessions", hostedType)
	return srv.Start()
}
