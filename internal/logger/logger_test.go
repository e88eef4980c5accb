package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/lecturehub/backend/internal/errors"
)

func TestLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	log.Info(context.Background(), "test message", map[string]interface{}{
		"key": "value",
	})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("expected level info, got %s", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("expected message 'test message', got %s", entry.Message)
	}
	if entry.Fields["key"] != "value" {
		t.Errorf("expected field key=value, got %v", entry.Fields["key"])
	}
}

func TestLogger_RequestIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	ctx := apperrors.WithRequestID(context.Background(), "req-123")
	log.Info(ctx, "with request id")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.RequestID != "req-123" {
		t.Errorf("expected request_id req-123, got %s", entry.RequestID)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "")

	log.Debug(context.Background(), "debug message")
	log.Info(context.Background(), "info message")

	if buf.Len() != 0 {
		t.Errorf("expected debug and info to be filtered, got:\n%s", buf.String())
	}

	log.Warn(context.Background(), "warn message")

	if !strings.Contains(buf.String(), "warn message") {
		t.Error("expected warn message to be logged")
	}
}

func TestLogger_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	appErr := apperrors.DatabaseError("query failed").WithCause(errors.New("connection reset"))
	log.Error(context.Background(), "operation failed", appErr)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Error == nil {
		t.Fatal("expected error details")
	}
	if entry.Error.Code != apperrors.CodeDatabaseError {
		t.Errorf("expected code %s, got %s", apperrors.CodeDatabaseError, entry.Error.Code)
	}
	if entry.Error.Category != string(apperrors.CategoryServer) {
		t.Errorf("expected server category, got %s", entry.Error.Category)
	}
	if entry.Error.StackTrace == "" {
		t.Error("expected a stack trace on error entries")
	}
	if entry.Caller == "" {
		t.Error("expected caller info on error entries")
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "").WithComponent("pipeline")

	log.Info(context.Background(), "component message")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Component != "pipeline" {
		t.Errorf("expected component pipeline, got %s", entry.Component)
	}
}

func TestLogger_OneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	log.Info(context.Background(), "first")
	log.Info(context.Background(), "second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	for _, line := range lines {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line is not valid JSON: %v", err)
		}
	}
}
