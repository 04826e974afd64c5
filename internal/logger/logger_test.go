package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mind-engage/testgrade/internal/config"
)

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("submission graded")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(strings.Split(string(b), "\n")[0])
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("not json: %q", line)
	}
	if entry["msg"] != "submission graded" || entry["level"] != "INFO" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error")
	}
}
