// Package httpapi exposes the nutrition engine over HTTP with gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vidasync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxRequestIDKey = "request_id"
)

type calculator interface {
	ComputeNutrition(ctx context.Context, foods string) vidasync.AggregateResult
	Calculate(ctx context.Context, foods string) vidasync.Macros
}

// Info describes the running configuration for /health. Credentials only says whether each
// secret is set, never its value.
type Info struct {
	OracleProvider string
	OracleModel    string
	CacheBackend   string
	Credentials    map[string]bool
}

// NewRouter wires the nutrition routes, request ids and access logging onto a fresh gin engine.
func NewRouter(calc calculator, info Info) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"oracle":      gin.H{"provider": info.OracleProvider, "model": info.OracleModel},
			"cache":       info.CacheBackend,
			"credentials": info.Credentials,
		})
	})

	NewHandler(calc).RegisterRoutes(router.Group("/nutrition"))
	return router
}

// RequestID reuses the caller's X-Request-ID or assigns a new one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestIDKey),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			slog.Error("HTTP: Request failed", attrs...)
			return
		}
		slog.Info("HTTP: Request served", attrs...)
	}
}
