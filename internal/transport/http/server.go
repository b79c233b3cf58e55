package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"studyhub/internal/bootstrap"
	mysqlClient "studyhub/internal/platform/mysql"
	rabbitmqClient "studyhub/internal/platform/rabbitmq"
	redisClient "studyhub/internal/platform/redis"
	"studyhub/internal/transport/http/handler"
	"studyhub/internal/transport/http/middleware"
)

func NewRouter(a *bootstrap.App) *gin.Engine {
	gin.SetMode(a.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(a.Log))

	router.GET("/healthz", handler.NewHealthHandler(a.Config.App.Name, a.Config.App.Env, a.StartedAt, healthProbes(a)).Check)
	if a.Metrics != nil {
		router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	}

	documentHandler := handler.NewDocumentHandler(a.Documents, a.Config.Ingest.UploadDir, a.Config.MaxUploadBytes(), a.Log)
	chatHandler := handler.NewChatHandler(a.Chat)
	quizHandler := handler.NewQuizHandler(a.Quizzes, a.Mastery)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(a.Config.Auth.JWTSecret))

	documents := v1.Group("/documents")
	documents.POST("/upload", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.DELETE("/:id", documentHandler.Delete)

	chat := v1.Group("/chat")
	chat.POST("/ask", chatHandler.Ask)
	chat.GET("/sessions", chatHandler.ListSessions)
	chat.POST("/sessions", chatHandler.CreateSession)
	chat.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chat.GET("/sessions/:id/messages", chatHandler.History)
	chat.POST("/sessions/:id/messages", chatHandler.SendMessage)

	quiz := v1.Group("/quiz")
	quiz.POST("/generate", quizHandler.Generate)
	quiz.GET("/blueprints", quizHandler.ListBlueprints)
	quiz.GET("/blueprints/:id/questions", quizHandler.Questions)
	quiz.POST("/blueprints/:id/attempt", quizHandler.SubmitAttempt)
	quiz.GET("/attempts", quizHandler.ListAttempts)

	v1.GET("/topics/mastery", quizHandler.Mastery)

	return router
}

// healthProbes leaves a probe nil for dependencies the app runs without.
func healthProbes(a *bootstrap.App) map[string]handler.Probe {
	probes := map[string]handler.Probe{
		"mysql":    nil,
		"redis":    nil,
		"rabbitmq": nil,
		"model":    nil,
	}
	if a.MySQL != nil {
		probes["mysql"] = func(ctx context.Context) error { return mysqlClient.Ping(ctx, a.MySQL) }
	}
	if a.Redis != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx, a.Redis) }
	}
	if a.MQConn != nil {
		probes["rabbitmq"] = func(context.Context) error { return rabbitmqClient.Ping(a.MQConn) }
	}
	if a.Model != nil {
		probes["model"] = a.Model.Ping
	}
	return probes
}
