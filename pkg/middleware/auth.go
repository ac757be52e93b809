package middleware

import (
	"strings"

	"rez-rewards-core/pkg/authctx"

	"github.com/gin-gonic/gin"
)

// Actor reads the identity headers injected by the API gateway and attaches
// an authctx.Actor to the request context. Requests with no identity headers
// pass through unauthenticated; handlers decide whether that is acceptable.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("x-user-id")
		if userID == "" {
			c.Next()
			return
		}

		actor := authctx.Actor{
			ID:     userID,
			System: c.GetHeader("x-actor-role") == "system",
		}

		if raw := c.GetHeader("x-store-ids"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					actor.StoreIDs = append(actor.StoreIDs, id)
				}
			}
		}

		c.Request = c.Request.WithContext(authctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
