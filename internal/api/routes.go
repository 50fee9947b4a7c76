package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	api := router.Group("/api")

	health := api.Group("/health")
	health.GET("", s.handleHealth)
	health.GET("/detailed", s.handleHealthDetailed)

	telemetry := api.Group("/telemetry")
	telemetry.POST("/session/started", s.handleEvent(eventSessionStarted))
	telemetry.POST("/session/completed", s.handleEvent(eventSessionCompleted))
	telemetry.POST("/step/started", s.handleEvent(eventStepStarted))
	telemetry.POST("/step/completed", s.handleEvent(eventStepCompleted))
	telemetry.POST("/llm/call", s.handleEvent(eventLlmCall))
	telemetry.POST("/tool/call", s.handleEvent(eventToolCall))
	telemetry.POST("/batch", s.handleBatch)

	sessions := api.Group("/sessions")
	sessions.GET("", s.handleListSessions)
	sessions.GET("/:id", s.handleGetSession)
	sessions.GET("/:id/timeline", s.handleSessionTimeline)
	sessions.GET("/:id/stats", s.handleSessionStats)
	sessions.GET("/:id/stream", s.handleSessionStream)
	sessions.DELETE("/:id", s.handleDeleteSession)

	agents := api.Group("/agents")
	agents.GET("", s.handleListAgents)
	agents.GET("/:id", s.handleGetAgent)
	agents.GET("/:id/skills", s.handleAgentSkills)
}
