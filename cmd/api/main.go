package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/groupflow/activity-sync-api/internal/chat"
	"github.com/groupflow/activity-sync-api/internal/config"
	"github.com/groupflow/activity-sync-api/internal/database"
	"github.com/groupflow/activity-sync-api/internal/docstore"
	"github.com/groupflow/activity-sync-api/internal/event"
	"github.com/groupflow/activity-sync-api/internal/handler"
	"github.com/groupflow/activity-sync-api/internal/middleware"
	"github.com/groupflow/activity-sync-api/internal/models"
	"github.com/groupflow/activity-sync-api/internal/repository"
	"github.com/groupflow/activity-sync-api/internal/router"
	"github.com/groupflow/activity-sync-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Group{}, &models.GroupAction{}, &models.User{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	chatClient, err := chat.NewRESTClient(chat.RESTConfig{
		BaseURL: cfg.ChatAPIURL,
		APIKey:  cfg.ChatAPIKey,
	})
	if err != nil {
		log.Fatalf("failed to create chat client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	store := docstore.NewRedisStore(redisClient)
	groupRepo := repository.NewGroupRepository(db)
	actionRepo := repository.NewGroupActionRepository(db)
	userRepo := repository.NewUserRepository(db)

	badgeQueue := event.NewNATSBadgeQueue(natsConn, cfg.BadgeTaskSubject, logger)
	badgePusher := event.NewNATSBadgePusher(natsConn, cfg.BadgePushSubject)

	followUpService := service.NewFollowUpService(store, groupRepo, logger)
	threadSyncService := service.NewThreadSyncService(store, chatClient, groupRepo, actionRepo, logger)
	badgeService := service.NewBadgeService(actionRepo, userRepo, groupRepo, chatClient, badgePusher, cfg.BadgeWindow, cfg.BadgeDebounce, cfg.GroupActionLimit, logger)
	defer badgeService.Stop()

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()

	followUpSource := event.NewFollowUpSource(natsConn, cfg.FollowUpSubject, followUpService, logger)
	if err := followUpSource.Start(runCtx); err != nil {
		log.Fatalf("failed to start follow-up event source: %v", err)
	}
	if err := badgeQueue.Consume(runCtx, badgeService.Schedule); err != nil {
		log.Fatalf("failed to start badge task consumer: %v", err)
	}

	webhookHandler := handler.NewWebhookHandler(threadSyncService, badgeQueue, chatClient, cfg.WebhookTrustedAgent, validate, logger)
	badgeHandler := handler.NewBadgeHandler(badgeService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		WebhookHandler: webhookHandler,
		BadgeHandler:   badgeHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
