package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends audit events to an NDJSON file, one event per line.
// It is the sink used when TASKGRID_AUDIT_FILE is set.
type FileLogger struct {
	path    string
	file    *os.File
	mu      sync.Mutex
	encoder *json.Encoder
	rotate  bool
	maxSize int64
	maxKeep int
}

// FileLoggerConfig configures the file logger.
type FileLoggerConfig struct {
	Path    string // Path to the audit log file
	Rotate  bool   // Enable size-based rotation
	MaxSize int64  // Max file size in bytes before rotation (default: 100MB)
	MaxKeep int    // Max number of rotated files to keep (default: 10)
}

// NewFileLogger creates a file-backed audit logger at config.Path.
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		path:    config.Path,
		rotate:  config.Rotate,
		maxSize: config.MaxSize,
		maxKeep: config.MaxKeep,
	}
	if logger.maxSize == 0 {
		logger.maxSize = 100 * 1024 * 1024
	}
	if logger.maxKeep == 0 {
		logger.maxKeep = 10
	}

	if err := logger.openLogFile(); err != nil {
		return nil, err
	}
	return logger, nil
}

func (l *FileLogger) openLogFile() error {
	if l.rotate {
		if info, err := os.Stat(l.path); err == nil && info.Size() >= l.maxSize {
			if err := l.rotateFile(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

func (l *FileLogger) rotateFile() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	timestamp := time.Now().Format("2006-01-02-15-04-05")
	ext := filepath.Ext(l.path)
	rotated := fmt.Sprintf("%s-%s%s", l.path[:len(l.path)-len(ext)], timestamp, ext)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("failed to rename audit log: %w", err)
	}

	if err := l.cleanupOldFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to cleanup old audit logs: %v\n", err)
	}
	return nil
}

func (l *FileLogger) cleanupOldFiles() error {
	ext := filepath.Ext(l.path)
	pattern := fmt.Sprintf("%s-*%s", l.path[:len(l.path)-len(ext)], ext)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	// Glob returns lexically sorted names; the timestamp suffix makes
	// lexical order chronological, so the oldest files come first.
	if len(files) > l.maxKeep {
		for _, file := range files[:len(files)-l.maxKeep] {
			if err := os.Remove(file); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old audit log %s: %v\n", file, err)
			}
		}
	}
	return nil
}

// Log writes one event as a JSON line, rotating first if the file is full.
func (l *FileLogger) Log(ctx context.Context, event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotate && l.file != nil {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
			if err := l.openLogFile(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// ReadLogs reads up to count events back from the current file. A count of
// zero reads everything. Intended for tests and operational spot checks.
func (l *FileLogger) ReadLogs(count int) ([]*AuditEvent, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*AuditEvent
	decoder := json.NewDecoder(file)
	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)
		if count > 0 && len(events) >= count {
			break
		}
	}
	return events, nil
}
