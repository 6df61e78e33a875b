// Package httpserver exposes the blog JSON API over HTTP using gin.
//
// Every response is an Envelope. The HTTP status line is always 200 and the
// outcome is carried in Envelope.Code.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/inkwell/internal/errs"
)

// Envelope codes.
const (
	CodeOK           = 200
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeError        = 500
)

const envelopeCodeKey = "envelope.code"

// Envelope is the uniform response wrapper.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(c *gin.Context, code int, msg string, data any) {
	c.Set(envelopeCodeKey, code)
	c.JSON(http.StatusOK, Envelope{Code: code, Message: msg, Data: data})
}

func ok(c *gin.Context, data any) { respond(c, CodeOK, "success", data) }

// fail renders err as an envelope. Unknown errors are logged and hidden.
func fail(c *gin.Context, log *zap.Logger, err error) {
	code, msg := classify(err)
	if code == CodeError && msg == "" {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	respond(c, code, msg, nil)
}

// classify maps an error to an envelope code and client message. An empty
// message with CodeError means the error is internal.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated), errs.IsTokenError(err):
		return CodeUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrForbidden):
		return CodeForbidden, errs.ErrForbidden.Error()
	case errors.Is(err, errs.ErrNotFound):
		return CodeNotFound, "not found"
	case errors.Is(err, errs.ErrDuplicateUsername):
		return CodeError, "username already exists"
	case errors.Is(err, errs.ErrDuplicateEmail):
		return CodeError, "email already registered"
	case errors.Is(err, errs.ErrInvalidCredentials):
		return CodeError, "invalid username or password"
	case errors.Is(err, errs.ErrAccountDisabled):
		return CodeError, "account is disabled"
	case errors.Is(err, errs.ErrRateLimited):
		return CodeError, "too many failed attempts, try again later"
	case errors.Is(err, errs.ErrVersionConflict):
		return CodeError, "concurrent modification, please retry"
	case errors.Is(err, errs.ErrValidation):
		return CodeError, err.Error()
	default:
		return CodeError, ""
	}
}
