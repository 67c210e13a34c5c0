// Package handler contains HTTP handlers for the API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deploy-doctor/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Pipeline is the analysis service behind the HTTP API.
type Pipeline interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
	HealthCheck(ctx context.Context) error
	Provider() string
}

// AnalyzeHandler handles log analysis requests.
type AnalyzeHandler struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(pipeline Pipeline, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		pipeline: pipeline,
		logger:   logger.Named("analyze_handler"),
	}
}

// Handle processes POST /analyze and POST /analyze/:variant requests.
// A variant in the path wins over one in the body.
func (h *AnalyzeHandler) Handle(c *gin.Context) {
	h.analyze(c, c.Param("variant"))
}

// HandleVariant returns a handler that always analyzes with the given variant.
func (h *AnalyzeHandler) HandleVariant(variant domain.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.analyze(c, string(variant))
	}
}

func (h *AnalyzeHandler) analyze(c *gin.Context, variantOverride string) {
	startTime := time.Now()
	requestID := RequestID(c)

	logger := h.logger.With(zap.String("request_id", requestID))
	logger.Debug("received analysis request")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, domain.MaxInputBytes)

	var body domain.AnalysisRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, logger, requestID, "", bindError(err))
		return
	}

	raw := string(body.Variant)
	if variantOverride != "" {
		raw = variantOverride
	}
	variant, err := domain.ParseVariant(raw)
	if err != nil {
		h.fail(c, logger, requestID, "", err)
		return
	}

	req, err := domain.NewAnalysisRequest(body.LogText, body.Context, variant)
	if err != nil {
		h.fail(c, logger, requestID, variant, err)
		return
	}

	result, err := h.pipeline.Analyze(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, requestID, variant, err)
		return
	}

	logger.Info("analysis completed",
		zap.String("variant", string(variant)),
		zap.String("provider", h.pipeline.Provider()),
		zap.Duration("duration", time.Since(startTime)),
	)

	c.JSON(http.StatusOK, domain.AnalysisResponse{
		Success:     true,
		Variant:     variant,
		Result:      result,
		RequestID:   requestID,
		ProcessedAt: time.Now(),
	})
}

func (h *AnalyzeHandler) fail(c *gin.Context, logger *zap.Logger, requestID string, variant domain.Variant, err error) {
	status := StatusFor(err)
	kind := domain.KindOf(err)

	if status >= http.StatusInternalServerError {
		logger.Error("analysis failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		logger.Warn("analysis rejected", zap.String("kind", string(kind)), zap.Error(err))
	}

	c.JSON(status, domain.AnalysisResponse{
		Success:     false,
		Variant:     variant,
		Error:       err.Error(),
		Code:        string(kind),
		Hint:        domain.Hint(err),
		RequestID:   requestID,
		ProcessedAt: time.Now(),
	})
}

// bindError classifies a body binding failure.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Errorf("%w: limit is %d bytes", domain.ErrBodyTooLarge, tooLarge.Limit)
	case errors.As(err, &invalid):
		return fmt.Errorf("%w: %v", domain.ErrEmptyLog, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidBody, err)
	}
}

// StatusFor maps a pipeline failure to an HTTP status code.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNone:
		return http.StatusOK
	case domain.KindInvalidRequest:
		if errors.Is(err, domain.ErrBodyTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case domain.KindMissingCredential:
		return http.StatusServiceUnavailable
	case domain.KindInvalidCredential, domain.KindMalformedResponse:
		return http.StatusBadGateway
	case domain.KindTransportFailure:
		if domain.IsTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler handles liveness requests.
type HealthHandler struct {
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger.Named("health_handler"),
	}
}

// Handle processes GET /health requests.
func (h *HealthHandler) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyHandler reports whether the AI service is usable.
type ReadyHandler struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewReadyHandler creates a new ReadyHandler.
func NewReadyHandler(pipeline Pipeline, logger *zap.Logger) *ReadyHandler {
	return &ReadyHandler{
		pipeline: pipeline,
		logger:   logger.Named("ready_handler"),
	}
}

// Handle processes GET /ready requests.
func (h *ReadyHandler) Handle(c *gin.Context) {
	err := h.pipeline.HealthCheck(c.Request.Context())
	if err != nil {
		h.logger.Warn("AI service not ready",
			zap.String("provider", h.pipeline.Provider()),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not_ready",
			"provider": h.pipeline.Provider(),
			"code":     string(domain.KindOf(err)),
			"hint":     domain.Hint(err),
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"provider": h.pipeline.Provider(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound answers unknown routes in the API's error shape.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, domain.AnalysisResponse{
		Success:     false,
		Error:       "route not found",
		RequestID:   RequestID(c),
		ProcessedAt: time.Now(),
	})
}
