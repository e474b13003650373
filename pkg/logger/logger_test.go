package logger

import (
	"bytes"
	"exam_tracker_backend/internal/config"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	cases := []struct {
		name, level, mode string
		want              zapcore.Level
	}{
		{"debug-mode", "", "debug", zap.DebugLevel},
		{"release-mode", "", "release", zap.InfoLevel},
		{"explicit", "warn", "debug", zap.WarnLevel},
		{"unknown-name", "loud", "release", zap.InfoLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Level(tc.level, tc.mode); got != tc.want {
				t.Fatalf("want=%s got=%s", tc.want, got)
			}
		})
	}
}

func TestNewTagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Service: "exam-tracker", Level: "warn"}, "debug", zapcore.AddSync(&buf))

	l.Info("hidden")
	l.Warn("Progress flush failed")
	_ = l.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line passed a warn logger: %s", out)
	}
	if !strings.Contains(out, "Progress flush failed") || !strings.Contains(out, `"service": "exam-tracker"`) {
		t.Fatalf("output: %s", out)
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "app.log")
	l := New(config.LogConfig{File: file, MaxSizeMB: 1}, "release", zapcore.AddSync(&console))
	l.Info("started")
	_ = l.Sync()

	if !strings.Contains(console.String(), "started") {
		t.Fatalf("console output: %s", console.String())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"started"`) {
		t.Fatalf("log file: %s", data)
	}
}
