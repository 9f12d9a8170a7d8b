package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewParsesLevel(t *testing.T) {
	log, err := New("debug", "text", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level: got %v, want debug", log.GetLevel())
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New("loud", "text", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("level: got %v, want info", log.GetLevel())
	}
}

func TestNewJSONFormatter(t *testing.T) {
	log, err := New("info", "JSON", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketbrief.log")
	log, err := New("info", "text", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.WithField("ticker", "AAPL").Info("collected")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "ticker=AAPL") {
		t.Errorf("log file: %s", data)
	}
}

func TestNewBadFilePath(t *testing.T) {
	if _, err := New("info", "text", filepath.Join(t.TempDir(), "missing", "dir", "x.log")); err == nil {
		t.Error("New with missing directory: got nil error")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Error("OrDiscard(nil) returned nil")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
}
