package utils

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	debugLogger, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger(true): %v", err)
	}
	if !debugLogger.Core().Enabled(zap.DebugLevel) {
		t.Error("debug logger should enable debug level")
	}
	_ = debugLogger.Sync()

	defaultLogger, err := NewLogger(false)
	if err != nil {
		t.Fatalf("NewLogger(false): %v", err)
	}
	if defaultLogger.Core().Enabled(zap.DebugLevel) {
		t.Error("default logger should not log at debug level")
	}
	if !defaultLogger.Core().Enabled(zap.InfoLevel) {
		t.Error("default logger should log at info level")
	}
	_ = defaultLogger.Sync()
}
