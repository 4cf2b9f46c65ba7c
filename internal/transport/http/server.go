package http

import (
	"github.com/gin-gonic/gin"

	"docqa/internal/bootstrap"
	"docqa/internal/transport/http/handler"
	"docqa/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.ZapLogger(app.Logger), gin.Recovery())
	router.MaxMultipartMemory = app.Config.App.MaxUploadBytes

	healthHandler := handler.NewHealthHandler(app)
	chatHandler := handler.NewChatHandler(app.Conversations, app.Config.CallTimeout())
	documentHandler := handler.NewDocumentHandler(app.Conversations, app.Config.App.MaxUploadBytes, app.Config.CallTimeout())
	eventsHandler := handler.NewEventsHandler(app.Worker, app.Config.Worker.EventBuffer, app.Logger)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	v1.POST("/documents", documentHandler.Upload)
	v1.GET("/events", eventsHandler.Stream)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)
	chatGroup.DELETE("/history/:id", chatHandler.ResetHistory)

	return router
}
