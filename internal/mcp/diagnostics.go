package mcp

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiagnosticLogger handles all diagnostic output of the MCP server.
// Stdout carries the protocol, so in MCP mode everything goes to a file.
type DiagnosticLogger struct {
	mu       sync.Mutex
	file     *os.File
	logger   *log.Logger
	filePath string
}

// NewDiagnosticLogger creates a logger. In MCP mode it writes to a
// timestamped file under the temp dir; otherwise to stderr.
func NewDiagnosticLogger(isMCP bool) *DiagnosticLogger {
	if !isMCP {
		return &DiagnosticLogger{logger: log.New(os.Stderr, "[MCP] ", log.LstdFlags)}
	}

	logDir := filepath.Join(os.TempDir(), "symindex-mcp-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return &DiagnosticLogger{logger: log.New(io.Discard, "", 0)}
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("mcp-%s-%d.log", time.Now().Format("2006-01-02T150405"), os.Getpid()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Logging must never break the server.
		return &DiagnosticLogger{logger: log.New(io.Discard, "", 0)}
	}

	return &DiagnosticLogger{
		file:     file,
		filePath: logPath,
		logger:   log.New(file, "[MCP] ", log.LstdFlags|log.Lshortfile),
	}
}

// Printf logs a diagnostic message
func (dl *DiagnosticLogger) Printf(format string, v ...interface{}) {
	if dl == nil || dl.logger == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.logger.Printf(format, v...)
}

// Errorf logs an error
func (dl *DiagnosticLogger) Errorf(format string, v ...interface{}) {
	dl.Printf("ERROR: "+format, v...)
}

// Close closes the log file if one is open
func (dl *DiagnosticLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return nil
	}
	err := dl.file.Close()
	dl.file = nil
	return err
}

// GetLogPath returns the path of the log file, "" when not logging to a file
func (dl *DiagnosticLogger) GetLogPath() string {
	if dl == nil {
		return ""
	}
	return dl.filePath
}

// NoOpLogger discards everything
var NoOpLogger = &DiagnosticLogger{
	logger: log.New(io.Discard, "", 0),
}
