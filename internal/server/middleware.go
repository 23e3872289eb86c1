package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/deskwise/pkg/tenantctx"
)

// Tenant and actor identity arrive as headers from the edge gateway, which
// has already authenticated the caller.
const (
	HeaderSubscriptionID = "X-Subscription-ID"
	HeaderActorID        = "X-Actor-ID"
	HeaderActorRole      = "X-Actor-Role"
	HeaderActorCompany   = "X-Actor-Company"
	HeaderActorTeam      = "X-Actor-Team"
)

// TenantContextMiddleware binds the subscription and actor headers into the
// request context. Requests without a subscription or a valid role are
// rejected before any handler runs.
func TenantContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriptionID, err := parseIDHeader(c, HeaderSubscriptionID)
		if err != nil || subscriptionID == 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		role, ok := tenantctx.ParseRole(c.GetHeader(HeaderActorRole))
		if !ok {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		actor := tenantctx.Actor{Role: role}
		if actor.ID, err = parseIDHeader(c, HeaderActorID); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if actor.CompanyID, err = parseIDHeader(c, HeaderActorCompany); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if actor.TeamID, err = parseIDHeader(c, HeaderActorTeam); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		ctx := tenantctx.WithSubscriptionID(c.Request.Context(), subscriptionID)
		ctx = tenantctx.WithActor(ctx, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseIDHeader(c *gin.Context, header string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return 0, nil
	}
	return snowflake.ParseString(raw)
}
