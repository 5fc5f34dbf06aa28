package centerctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// CenterContextKey is the request context key for the active center ID.
type CenterContextKey struct{}

// WithCenterID stores the center ID in the context.
func WithCenterID(ctx context.Context, centerID int64) context.Context {
	return context.WithValue(ctx, CenterContextKey{}, centerID)
}

// CenterIDFromContext returns the center ID from context, if set.
func CenterIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(CenterContextKey{})
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
