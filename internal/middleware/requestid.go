package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/pkg/logger"
)

const (
	HeaderXRequestID = gateway.HeaderXRequestID
	ContextRequestID = "request_id"

	maxRequestIDLength = 64
)

// RequestID tags each request with an id, reusing the caller's when it is
// safe to log, and stores a logger carrying that id in the request context.
func RequestID(base *logger.Logger) gin.HandlerFunc {
	if base == nil {
		base = logger.Nop()
	}
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if !validRequestID(rid) {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Request = c.Request.WithContext(base.With(ContextRequestID, rid).WithContext(c.Request.Context()))
		c.Next()
	}
}

// RequestLogger returns the request-scoped logger set by RequestID.
func RequestLogger(c *gin.Context) *logger.Logger {
	return logger.FromContext(c.Request.Context())
}

func validRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLength {
		return false
	}
	for _, r := range rid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
