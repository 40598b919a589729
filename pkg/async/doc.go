// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and error collection.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, logger, 5*time.Second, "audit emission", func(ctx context.Context) error {
//		// Task code with automatic panic recovery and timeout
//		return auditLogger.LogEvent(ctx, event)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, logger, 4, "audit writes", 10*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return writer.Write(ctx, event)
//	})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
// Error Collection: Non-blocking error channels
// Graceful Shutdown: Worker draining
//
// # Use Cases
//
// Audit event emission, cache warming, background invalidation processing
//
// # Related Packages
//
//   - pkg/audit: Uses WorkerPool for buffered event writes
//   - pkg/api: Uses SafeGo for fire-and-forget audit emission
package async
