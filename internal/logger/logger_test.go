package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/facewatch/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestInitTagsRunID(t *testing.T) {
	var buf bytes.Buffer
	id := initWith(config.LogConfig{Level: "debug"}, &buf)
	if id == "" {
		t.Fatal("Expected a run id")
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("Level = %v, want debug", log.GetLevel())
	}

	log.WithField("file", "alice.jpg").Warn("No face detected")
	out := buf.String()
	if !strings.Contains(out, id) || !strings.Contains(out, "alice.jpg") {
		t.Errorf("Expected run id and field in output, got %q", out)
	}
}

func TestInitInvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	initWith(config.LogConfig{Level: "loud"}, &buf)
	if log.GetLevel() != log.InfoLevel {
		t.Errorf("Level = %v, want info", log.GetLevel())
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "facewatch.log")
	var buf bytes.Buffer
	initWith(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1}, &buf)

	log.Info("Known faces loaded")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), "Known faces loaded") {
		t.Errorf("Log file missing entry: %q", data)
	}
}
