package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_RejectsBadFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "console"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NoError(t, logger.Sync())
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithTaskID(ctx, "task-1")
	ctx = WithAgentID(ctx, "coder")
	ctx = WithSessionID(ctx, "s1")

	fields := ContextFields(ctx)
	require.Len(t, fields, 3)

	assert.Equal(t, "task-1", TaskIDFromContext(ctx))
	assert.Equal(t, "coder", AgentIDFromContext(ctx))
	assert.Equal(t, "s1", SessionIDFromContext(ctx))
}

func TestNamedAndWith(t *testing.T) {
	logger := NewNop()
	child := logger.Named("worktree").With()
	require.NotNil(t, child)
	assert.NotSame(t, logger, child)
}
