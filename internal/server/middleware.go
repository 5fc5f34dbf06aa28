package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fitstack/centerledger/internal/centerctx"
	obscontext "github.com/fitstack/centerledger/internal/observability/context"
	"github.com/gin-gonic/gin"
)

const (
	HeaderCenter = "X-Center-Id"
	HeaderStaff  = "X-Staff-Id"
)

// CenterContext resolves the acting center from the X-Center-Id header,
// falling back to the configured default center for single-site deployments.
func (s *Server) CenterContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderCenter))

		var centerID int64
		if raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("center_id", "invalid_center", "invalid center id"))
				return
			}
			centerID = int64(parsed)
		} else {
			centerID = s.cfg.DefaultCenterID
		}

		if centerID == 0 {
			AbortWithError(c, newValidationError("center_id", "invalid_center", "missing center id"))
			return
		}

		ctx := centerctx.WithCenterID(c.Request.Context(), centerID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorContext records the staff member named in X-Staff-Id so audit
// entries can attribute writes.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		staffID := strings.TrimSpace(c.GetHeader(HeaderStaff))
		if staffID != "" {
			ctx := obscontext.WithActor(c.Request.Context(), "staff", staffID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
