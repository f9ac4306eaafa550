package middleware

import (
	"context"
	"net/http"
	"strings"

	"housing-chat/internal/identity"
	"housing-chat/internal/transport/httpdto"
	"housing-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		principal, err := resolver.Resolve(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := identity.WithPrincipal(c.Request.Context(), principal)
		ctx = context.WithValue(ctx, logger.PartyIdKey, principal.Party.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
