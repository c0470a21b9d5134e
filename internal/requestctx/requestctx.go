// Package requestctx carries the caller's identity on a context.Context.
package requestctx

import "context"

type (
	projectIDContextKey struct{}
	userIDContextKey    struct{}
)

// WithProjectID stores the caller's project identifier in context.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, projectIDContextKey{}, projectID)
}

// ProjectIDFromContext returns the project identifier stored in context.
func ProjectIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(projectIDContextKey{}).(string)
	return value
}

// WithUserID stores the caller's user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}
