// Package handler contains HTTP handlers for the API.
package handler

import (
	"net/http"
	"time"

	"github.com/deploy-doctor/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// LoggingMiddleware logs request details.
func LoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("request completed",
			zap.String("request_id", RequestID(c)),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(startTime)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// RecoveryMiddleware handles panics gracefully.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", RequestID(c)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, domain.AnalysisResponse{
					Success:     false,
					Error:       "Internal server error",
					Code:        string(domain.KindInternal),
					RequestID:   RequestID(c),
					ProcessedAt: time.Now(),
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware adds CORS headers so a browser front end can call the API.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware ensures each request has a unique ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

// RequestID returns the ID assigned by RequestIDMiddleware, or a fresh one.
func RequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Set(requestIDKey, id)
	return id
}

// NewRouter wires middleware and routes around the pipeline.
func NewRouter(pipeline Pipeline, logger *zap.Logger) *gin.Engine {
	analyzeHandler := NewAnalyzeHandler(pipeline, logger)
	healthHandler := NewHealthHandler(logger)
	readyHandler := NewReadyHandler(pipeline, logger)

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware())
	router.NoRoute(NotFound)

	router.GET("/health", healthHandler.Handle)
	router.GET("/ready", readyHandler.Handle)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyze", analyzeHandler.Handle)
		v1.POST("/analyze/:variant", analyzeHandler.Handle)
		v1.POST("/diagnose", analyzeHandler.HandleVariant(domain.VariantLogDiagnosis))
		v1.POST("/fix", analyzeHandler.HandleVariant(domain.VariantFileFix))
	}

	return router
}
