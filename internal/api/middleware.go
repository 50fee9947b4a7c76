package api

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID reuses the caller's X-Request-ID or assigns a new UUID, and
// echoes it on the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the request id assigned by the middleware.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// requestLogger logs each request on completion and attaches a
// request-scoped zerolog logger to the request context.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		l := log.Logger.With().Str("request_id", RequestIDFrom(c)).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = l.Error()
		case status >= http.StatusBadRequest:
			evt = l.Warn()
		default:
			evt = l.Info()
		}
		evt = evt.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size())
		if len(c.Errors) > 0 {
			evt = evt.Str("error", c.Errors.String())
		}
		evt.Msg("request completed")
	}
}

// recovery turns a panic into a 500 JSON response and logs the stack.
func recovery(dev bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		cause := fmt.Sprint(recovered)
		zerolog.Ctx(c.Request.Context()).Error().
			Str("panic", cause).
			Str("stack", string(debug.Stack())).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, internalError(dev, cause))
	})
}

// cors allows any origin, matching a dashboard served from elsewhere.
func cors() gin.HandlerFunc {
	methods := strings.Join([]string{
		http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete,
	}, ",")
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", methods)
			if req := c.GetHeader("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
				h.Add("Vary", "Access-Control-Request-Headers")
			}
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// securityHeaders sets the usual hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Content-Security-Policy", "default-src 'self';base-uri 'self';frame-ancestors 'self';object-src 'none'")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-XSS-Protection", "0")
		c.Next()
	}
}

// bodyLimit caps request bodies at limit bytes. Reads past the cap fail
// with *http.MaxBytesError, which handlers map to 413.
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{
				Error:   "Payload Too Large",
				Message: fmt.Sprintf("request body exceeds %d bytes", limit),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
