package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type taskCtxKey struct{}
type agentCtxKey struct{}
type sessionCtxKey struct{}

// WithTaskID attaches a task id to the context for log correlation.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskCtxKey{}, taskID)
}

// WithAgentID attaches an agent id to the context for log correlation.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentCtxKey{}, agentID)
}

// WithSessionID attaches an orchestration session id to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// TaskIDFromContext returns the task id, or "" when absent.
func TaskIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(taskCtxKey{}).(string)
	return v
}

// AgentIDFromContext returns the agent id, or "" when absent.
func AgentIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(agentCtxKey{}).(string)
	return v
}

// SessionIDFromContext returns the session id, or "" when absent.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionCtxKey{}).(string)
	return v
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)

	if taskID := TaskIDFromContext(ctx); taskID != "" {
		fields = append(fields, zap.String("task.id", taskID))
	}
	if agentID := AgentIDFromContext(ctx); agentID != "" {
		fields = append(fields, zap.String("agent.id", agentID))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}

	return fields
}
