package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskgrid/taskgrid/pkg/observability"
)

func testLogger() (*observability.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return observability.NewLogger(observability.InfoLevel, &buf), &buf
}

func TestSafeGo_Success(t *testing.T) {
	logger, _ := testLogger()
	executed := atomic.Bool{}

	SafeGo(context.Background(), logger, 1*time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	// Wait for goroutine to complete
	time.Sleep(100 * time.Millisecond)

	if !executed.Load() {
		t.Error("SafeGo did not execute function")
	}
}

func TestSafeGo_WithError(t *testing.T) {
	logger, buf := testLogger()
	executed := atomic.Bool{}

	SafeGo(context.Background(), logger, 1*time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return errors.New("test error")
	})

	time.Sleep(100 * time.Millisecond)

	if !executed.Load() {
		t.Error("SafeGo did not execute function despite error")
	}
	if !strings.Contains(buf.String(), "test error") {
		t.Error("SafeGo did not log the task error")
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	logger, _ := testLogger()
	started := atomic.Bool{}
	completed := atomic.Bool{}

	SafeGo(context.Background(), logger, 50*time.Millisecond, "test task", func(ctx context.Context) error {
		started.Store(true)
		select {
		case <-time.After(200 * time.Millisecond):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	time.Sleep(300 * time.Millisecond)

	if !started.Load() {
		t.Error("SafeGo did not start function")
	}
	if completed.Load() {
		t.Error("Function should have been cancelled by timeout")
	}
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	logger, buf := testLogger()

	SafeGo(context.Background(), logger, 1*time.Second, "panicky task", func(ctx context.Context) error {
		panic("deliberate panic")
	})

	time.Sleep(100 * time.Millisecond)

	if !strings.Contains(buf.String(), "PANIC") {
		t.Error("SafeGo did not log recovered panic")
	}
}

func TestSafeGoNoError(t *testing.T) {
	logger, _ := testLogger()
	executed := atomic.Bool{}

	SafeGoNoError(context.Background(), logger, 1*time.Second, "test task", func(ctx context.Context) {
		executed.Store(true)
	})

	time.Sleep(100 * time.Millisecond)

	if !executed.Load() {
		t.Error("SafeGoNoError did not execute function")
	}
}

func TestWorkerPool_ProcessesTasks(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 4, "test pool", 1*time.Second)

	var counter atomic.Int32
	for i := 0; i < 20; i++ {
		if err := pool.Submit(func(ctx context.Context) error {
			counter.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	if err := pool.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if got := counter.Load(); got != 20 {
		t.Errorf("Processed %d tasks, want 20", got)
	}
}

func TestWorkerPool_CollectsErrors(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 2, "test pool", 1*time.Second)

	if err := pool.Submit(func(ctx context.Context) error {
		return errors.New("task failed")
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := pool.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-pool.Errors():
		if err == nil || err.Error() != "task failed" {
			t.Errorf("Unexpected error: %v", err)
		}
	default:
		t.Error("Expected error on error channel")
	}
}

func TestWorkerPool_RecoversTaskPanic(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 1, "test pool", 1*time.Second)

	if err := pool.Submit(func(ctx context.Context) error {
		panic("task panic")
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// The pool must survive the panic and keep processing.
	done := atomic.Bool{}
	if err := pool.Submit(func(ctx context.Context) error {
		done.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := pool.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if !done.Load() {
		t.Error("Pool stopped processing after a task panic")
	}

	select {
	case err := <-pool.Errors():
		if err == nil || !strings.Contains(err.Error(), "panic") {
			t.Errorf("Expected panic error, got %v", err)
		}
	default:
		t.Error("Expected panic converted to error on error channel")
	}
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 1, "test pool", 1*time.Second)

	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if err := pool.Submit(func(ctx context.Context) error { return nil }); err == nil {
		t.Error("Expected error submitting to shut-down pool")
	}
}

func TestWorkerPool_ShutdownIdempotent(t *testing.T) {
	logger, _ := testLogger()
	pool := NewWorkerPool(context.Background(), logger, 1, "test pool", 1*time.Second)

	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
