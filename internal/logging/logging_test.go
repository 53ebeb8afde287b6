package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/z0nyx/Akidzuki-CLI/internal/config"
)

func setup(t *testing.T, level string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	config.Cfg = config.Defaults()
	config.Cfg.DataPath = dir
	config.Cfg.LogPath = path
	config.Cfg.LogLevel = level
	Init()
	t.Cleanup(func() { Close() })
	return path
}

func TestLevelGate(t *testing.T) {
	tests := []struct {
		level string
		want  []string
		drop  []string
	}{
		{"DEBUG", []string{"dbg-line", "info-line", "warn-line", "err-line"}, nil},
		{"INFO", []string{"info-line", "warn-line", "err-line"}, []string{"dbg-line"}},
		{"WARN", []string{"warn-line", "err-line"}, []string{"dbg-line", "info-line"}},
		{"ERROR", []string{"err-line"}, []string{"dbg-line", "info-line", "warn-line"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := setup(t, tt.level)

			Debugf("[test] dbg-line %d", 1)
			log.Printf("[test] info-line")
			log.Printf("[test] WARNING: warn-line")
			log.Printf("[test] ERROR: err-line")

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			out := string(data)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("level %s: missing %q in:\n%s", tt.level, w, out)
				}
			}
			for _, d := range tt.drop {
				if strings.Contains(out, d) {
					t.Errorf("level %s: %q should be dropped:\n%s", tt.level, d, out)
				}
			}
		})
	}
}

func TestDebugfTagsAfterPrefix(t *testing.T) {
	path := setup(t, "DEBUG")
	Debugf("[session] moved %s", "web")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[session] DEBUG: moved web") {
		t.Errorf("debug line not tagged after prefix:\n%s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warning", LevelWarn},
		{"WARN", LevelWarn},
		{"Error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, %v; want %s", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestReadTailAndClear(t *testing.T) {
	setup(t, "DEBUG")
	if !DebugEnabled() {
		t.Fatal("DEBUG level not enabled")
	}

	for i := 0; i < 10; i++ {
		log.Printf("line-%d", i)
	}
	tail, err := ReadTail(3)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	lines := strings.Split(tail, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), tail)
	}
	if !strings.HasSuffix(lines[2], "line-9") {
		t.Errorf("last line = %q, want line-9", lines[2])
	}

	if err := Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	tail, err = ReadTail(5)
	if err != nil {
		t.Fatalf("ReadTail after clear: %v", err)
	}
	if tail != "" {
		t.Errorf("tail after clear = %q, want empty", tail)
	}
}

func TestReadTailMissingFile(t *testing.T) {
	config.Cfg = config.Defaults()
	config.Cfg.LogPath = filepath.Join(t.TempDir(), "none.log")
	tail, err := ReadTail(5)
	if err != nil || tail != "" {
		t.Errorf("ReadTail on missing file = %q, %v", tail, err)
	}
}
