package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	EventHandshakeStart   = "handshake_start"
	EventHandshakeSuccess = "handshake_success"
	EventHandshakeFailure = "handshake_failure"
	EventProxyError       = "proxy_error"
)

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	TraceID    string    `json:"trace_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Method     string    `json:"method,omitempty"`
	Path       string    `json:"path,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Logger appends JSON lines. A nil *Logger discards everything.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	now  func() time.Time
}

// New writes entries to w.
func New(w io.Writer) *Logger {
	return &Logger{
		enc: json.NewEncoder(w),
		now: time.Now,
	}
}

// Open appends to the file at path, creating parent directories.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(file)
	l.file = file
	return l, nil
}

func (l *Logger) Log(entry LogEntry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = l.now()
	l.enc.Encode(entry)
}

func (l *Logger) LogHandshakeStart(traceID string) {
	l.Log(LogEntry{
		Type:    EventHandshakeStart,
		TraceID: traceID,
	})
}

func (l *Logger) LogHandshakeSuccess(traceID, origin string, d time.Duration) {
	l.Log(LogEntry{
		Type:       EventHandshakeSuccess,
		TraceID:    traceID,
		Origin:     origin,
		DurationMs: d.Milliseconds(),
	})
}

func (l *Logger) LogHandshakeFailure(traceID, stage, message string, d time.Duration) {
	l.Log(LogEntry{
		Type:       EventHandshakeFailure,
		TraceID:    traceID,
		Stage:      stage,
		Message:    message,
		DurationMs: d.Milliseconds(),
	})
}

func (l *Logger) LogProxyError(method, path, remoteAddr string, err error) {
	l.Log(LogEntry{
		Type:       EventProxyError,
		Method:     method,
		Path:       path,
		RemoteAddr: remoteAddr,
		Error:      err.Error(),
	})
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) GetLogPath() string {
	if l != nil && l.file != nil {
		return l.file.Name()
	}
	return ""
}
