// Package contextkeys provides centralized context key definitions
//
// All context keys used across the service are defined here so that packages
// never collide on a key and every value stored in a request context is
// discoverable in one place.
//
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: every handler behind authentication
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: access logs and error logs
	RequestIDKey Key = "request_id"

	// AgentIDKey contains the authenticated agent ID (int64)
	// Set by: middleware.AuthMiddleware
	// Used by: observability.FromContext
	AgentIDKey Key = "agent_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAgentID adds the authenticated agent ID to the context
func WithAgentID(ctx context.Context, agentID int64) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetAgentID retrieves the agent ID from context, 0 when unauthenticated
func GetAgentID(ctx context.Context) int64 {
	if id, ok := ctx.Value(AgentIDKey).(int64); ok {
		return id
	}
	return 0
}
