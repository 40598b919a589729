package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_LogAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		event := NewInvalidationEvent(int64(i), i, "role_change")
		require.NoError(t, logger.Log(ctx, event))
	}

	events, err := logger.ReadLogs(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(0), events[0].PrincipalID)
	assert.Equal(t, int64(2), events[2].PrincipalID)
	assert.Equal(t, EventTypeCacheInvalidate, events[1].EventType)
}

func TestFileLogger_ReadLogsCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)
	defer logger.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Log(context.Background(), NewInvalidationEvent(int64(i), 1, "test")))
	}

	events, err := logger.ReadLogs(2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFileLogger_RequiresPath(t *testing.T) {
	_, err := NewFileLogger(FileLoggerConfig{})
	assert.Error(t, err)
}

func TestFileLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "audit.log")
	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.Log(context.Background(), NewInvalidationEvent(1, 1, "test")))

	events, err := logger.ReadLogs(0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFileLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	// Tiny max size forces a rotation on every write after the first.
	logger, err := NewFileLogger(FileLoggerConfig{
		Path:    path,
		Rotate:  true,
		MaxSize: 64,
		MaxKeep: 2,
	})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Log(ctx, NewInvalidationEvent(int64(i), i, "rotation")))
	}

	rotated, err := filepath.Glob(filepath.Join(dir, "audit-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, rotated, "expected at least one rotated file")
	assert.LessOrEqual(t, len(rotated), 2, "cleanup should cap rotated files at MaxKeep")
}

func TestFileLogger_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(FileLoggerConfig{Path: path})
	require.NoError(t, err)
	defer logger.Close()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			done <- logger.Log(context.Background(), NewInvalidationEvent(int64(n), n, "concurrent"))
		}(i)
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	events, err := logger.ReadLogs(0)
	require.NoError(t, err)
	assert.Len(t, events, 10)

	// Every line must be intact JSON; interleaved writes would break decode.
	seen := make(map[int64]bool)
	for _, e := range events {
		seen[e.PrincipalID] = true
	}
	assert.Len(t, seen, 10, fmt.Sprintf("expected 10 distinct principals, got %d", len(seen)))
}
