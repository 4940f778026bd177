package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ai-assistant-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevelsAndFormat(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.Formatter)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewLoggerFileOutputCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "bot.log")
	log, err := NewLogger(&config.LoggingConfig{
		Level:  "info",
		Output: "file",
		File:   config.FileConfig{Path: path, MaxSize: 1, MaxBackups: 1, MaxAge: 1},
	})
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}
	log.Info("hello")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestNewLoggerBothOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log, err := NewLogger(&config.LoggingConfig{
		Level:  "warn",
		Output: "both",
		File:   config.FileConfig{Path: path, MaxSize: 1},
	})
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter by default, got %T", log.Formatter)
	}
	log.Warn("disk and console")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestForChatFields(t *testing.T) {
	entry := ForChat(NewDiscardLogger(), 10, 20)
	if entry.Data["chat_id"] != int64(10) || entry.Data["user_id"] != int64(20) {
		t.Fatalf("unexpected fields %+v", entry.Data)
	}
}
