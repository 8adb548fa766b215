package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/ai"
	appsvc "github.com/SQ-Kust408/poet-1v1-chat-room/internal/app"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/bootstrap"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/cache"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/platform/rabbitmq"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/repository"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/transport/http/handler"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	// Rate limiting runs before every route, including unauthenticated ones.
	router.Use(middleware.RateLimit(app.Limiter))

	userRepo := repository.NewUserRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	turnPublisher := rabbitmq.NewTurnEventPublisher(app.MQConn, app.Config.RabbitMQ.TurnEventQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		app.Poets,
		messageRepo,
		ai.NewClient(time.Duration(app.Config.LLM.TimeoutSecond)*time.Second),
		historyCache,
		turnPublisher,
		ai.ChatConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.Model,
		},
		time.Duration(app.Config.LLM.TimeoutSecond)*time.Second,
	)

	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(authService)
	poetHandler := handler.NewPoetHandler(app.Poets)
	chatHandler := handler.NewChatHandler(chatService)

	router.GET("/healthz", healthHandler.Check)
	router.POST("/register", authHandler.Register)
	router.POST("/token", authHandler.Token)
	router.GET("/poets", poetHandler.List)
	router.GET("/poet/:name", poetHandler.Detail)

	authed := router.Group("/", middleware.AuthJWT(app.Config.Auth.JWTSecret, authService))
	authed.GET("/chat/:poet/history", chatHandler.History)
	authed.POST("/chat/:poet", chatHandler.Chat)
	authed.GET("/search", chatHandler.Search)

	return router
}
