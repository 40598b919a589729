package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures events for assertions.
type recordingLogger struct {
	events   []*AuditEvent
	logErr   error
	closeErr error
	closed   bool
}

func (r *recordingLogger) Log(ctx context.Context, event *AuditEvent) error {
	if r.logErr != nil {
		return r.logErr
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingLogger) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMultiLogger_FanOut(t *testing.T) {
	first := &recordingLogger{}
	second := &recordingLogger{}
	multi := NewMultiLogger(first, second)

	event := NewInvalidationEvent(1, 2, "test")
	require.NoError(t, multi.Log(context.Background(), event))

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Same(t, event, first.events[0])
}

func TestMultiLogger_FailingSinkDoesNotBlockOthers(t *testing.T) {
	broken := &recordingLogger{logErr: errors.New("disk full")}
	healthy := &recordingLogger{}
	multi := NewMultiLogger(broken, healthy)

	err := multi.Log(context.Background(), NewInvalidationEvent(1, 2, "test"))

	assert.EqualError(t, err, "disk full")
	assert.Len(t, healthy.events, 1, "healthy sink should still receive the event")
}

func TestMultiLogger_Close(t *testing.T) {
	first := &recordingLogger{closeErr: errors.New("close failed")}
	second := &recordingLogger{}
	multi := NewMultiLogger(first, second)

	err := multi.Close()

	assert.Error(t, err)
	assert.True(t, first.closed)
	assert.True(t, second.closed, "all sinks close even when one fails")
}

func TestMultiLogger_Empty(t *testing.T) {
	multi := NewMultiLogger()
	assert.NoError(t, multi.Log(context.Background(), NewInvalidationEvent(1, 0, "test")))
	assert.NoError(t, multi.Close())
}
