package logger

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevelAndFormat(t *testing.T) {
	if _, err := New("verbose", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConvertToFields(t *testing.T) {
	fields := convertToFields([]interface{}{
		"feed", "tech",
		"count", 3,
		"elapsed", 2 * time.Second,
		"error", errors.New("boom"),
		"dangling",
	})

	if len(fields) != 5 {
		t.Fatalf("len(fields) = %d, want 5", len(fields))
	}
	if fields[0].Type != zapcore.StringType || fields[0].Key != "feed" {
		t.Errorf("field[0] = %+v, want string feed", fields[0])
	}
	if fields[1].Type != zapcore.Int64Type {
		t.Errorf("field[1] type = %v, want int64", fields[1].Type)
	}
	if fields[2].Type != zapcore.DurationType {
		t.Errorf("field[2] type = %v, want duration", fields[2].Type)
	}
	if fields[3].Key != "error" {
		t.Errorf("field[3] key = %s, want error", fields[3].Key)
	}
	if fields[4].Key != "dangling" {
		t.Errorf("field[4] key = %s, want dangling", fields[4].Key)
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	log := NewNop().WithComponent("test").WithFeed("tech")
	log.Info("hello", "k", "v")
	log.Error("failure", "error", errors.New("x"))
}
