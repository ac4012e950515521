package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ed-intake/internal/handler"
	"github.com/jwalitptl/ed-intake/internal/service/urgency"
)

type Authenticator interface {
	Authenticate(token string) (*urgency.Operator, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate verifies the bearer token and stores the operator in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}

		op, err := m.auth.Authenticate(token)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		c.Set(handler.ContextOperator, op)
		c.Next()
	}
}
