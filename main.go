package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(context.Background(), cfg.Tracing.Endpoint, serviceName)
		if err != nil {
			log.Fatalf("failed to set up tracing: %v", err)
		}
		defer shutdown(context.Background())
	}

	verifier := auth.NewVerifier(cfg.JWT.Secret)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	sessionRepo := repositories.NewSessionRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.messaging", serviceName, getEnvironment())

	hub := ws.NewHub()
	typingTracker := ws.NewTypingTracker(cfg.Typing.TTL)
	gateway := ws.NewGateway(hub, verifier, chatRepo, sessionRepo, messageRepo, typingTracker, publisher, auditEmitter)

	if cfg.AMQP.URL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, hub, sessionRepo)
		if err != nil {
			log.Printf("push consumer disabled: %v", err)
		} else {
			defer consumer.Close()
			if err := consumer.Start(); err != nil {
				log.Printf("push consumer failed to start: %v", err)
			}
		}
	}

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo)
	sessionHandler := handlers.NewSessionHandler(sessionRepo, hub)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.GET("/sessions/:session_id", authMiddleware, sessionHandler.GetSession)
	router.POST("/internal/sessions/:session_id/status", authMiddleware, sessionHandler.UpdateSessionStatus)

	router.GET("/ws", gateway.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterHealthRoutes(router, database)
	handlers.RegisterDebugRoutes(router, auditEmitter, hub, getEnvironment() != "production")

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnvironment() string {
	if env := gin.Mode(); env == gin.ReleaseMode {
		return "production"
	}
	return "development"
}
