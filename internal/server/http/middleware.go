package httpserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/inkwell/internal/auth"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request.id"

// RequestID reuses an incoming X-Request-ID or generates a UUIDv4.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			if u, err := uuid.NewV4(); err == nil {
				id = u.String()
			}
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logging writes one line per request with metadata only: no bodies, no
// credentials.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("code", c.GetInt(envelopeCodeKey)),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if p, ok := auth.PrincipalFromCtx(c.Request.Context()); ok {
			fields = append(fields, zap.Int64("user_id", p.UserID))
		}
		log.Info("http", fields...)
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("route", c.FullPath()),
					zap.String("request_id", c.GetString(requestIDKey)),
				)
				if !c.Writer.Written() {
					c.Set(envelopeCodeKey, CodeError)
					c.JSON(http.StatusOK, Envelope{Code: CodeError, Message: "internal error"})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Authenticate attaches a Principal to the request context when the
// Authorization header carries a valid token. It never rejects a request;
// handlers that need a Principal answer 401 themselves.
func Authenticate(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if p, ok := a.Authenticate(ctx, c.GetHeader("Authorization")); ok {
			c.Request = c.Request.WithContext(auth.WithPrincipal(ctx, p))
		}
		c.Next()
	}
}
