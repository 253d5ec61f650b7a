package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/scio-practice/session-service/internal/session"
	"github.com/scio-practice/session-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
}

func NewHandlerManager(manager *session.Manager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(manager, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "session-service",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)

			// Clock
			sessions.POST("/:id/tick", hm.sessionHandler.Tick)
			sessions.POST("/:id/pause", hm.sessionHandler.Pause)
			sessions.POST("/:id/resume", hm.sessionHandler.Resume)

			// Answering
			sessions.PUT("/:id/answers/:index", hm.sessionHandler.SetAnswer)
			sessions.POST("/:id/answers/:index/toggle", hm.sessionHandler.ToggleOption)
			sessions.PUT("/:id/bookmarks/:index", hm.sessionHandler.ToggleBookmark)
			sessions.DELETE("/:id/questions/:index", hm.sessionHandler.RemoveQuestion)
			sessions.POST("/:id/questions/:index/replace", hm.sessionHandler.ReplaceQuestion)

			// Finalization
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.POST("/:id/reset", hm.sessionHandler.Reset)
			sessions.POST("/:id/explanation", hm.sessionHandler.Explain)
			sessions.GET("/:id/export", hm.sessionHandler.ExportResults)
		}
	}
}
