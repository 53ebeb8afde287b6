package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AKIDZUKI_DATA_PATH", dir)

	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if Cfg.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %s, want 30s", Cfg.KeepaliveInterval)
	}
	if Cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %s, want 100ms", Cfg.PollInterval)
	}
	if Cfg.IOStrategy != IOStrategyAuto {
		t.Errorf("IOStrategy = %q, want auto", Cfg.IOStrategy)
	}
	if want := filepath.Join(dir, "akidzuki.db"); Cfg.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", Cfg.DatabasePath, want)
	}
	if want := filepath.Join(dir, "akidzuki.log"); Cfg.LogPath != want {
		t.Errorf("LogPath = %q, want %q", Cfg.LogPath, want)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AKIDZUKI_DATA_PATH", dir)

	content := "ssh_timeout: 20s\nkeepalive_interval: 45s\nsort_by: host\nio_strategy: threaded\n"
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AKIDZUKI_KEEPALIVE_INTERVAL", "15s")

	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if Cfg.SSHTimeout != 20*time.Second {
		t.Errorf("SSHTimeout = %s, want 20s from file", Cfg.SSHTimeout)
	}
	if Cfg.KeepaliveInterval != 15*time.Second {
		t.Errorf("KeepaliveInterval = %s, want 15s from environment", Cfg.KeepaliveInterval)
	}
	if Cfg.SortBy != "host" {
		t.Errorf("SortBy = %q, want host", Cfg.SortBy)
	}
	if Cfg.IOStrategy != IOStrategyThreaded {
		t.Errorf("IOStrategy = %q, want threaded", Cfg.IOStrategy)
	}
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AKIDZUKI_DATA_PATH", dir)
	t.Setenv("AKIDZUKI_IO_STRATEGY", "epoll")

	err := Load()
	if err == nil {
		t.Fatal("expected error for unknown io strategy")
	}
	if !strings.Contains(err.Error(), "io_strategy") {
		t.Errorf("error %q does not mention io_strategy", err)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AKIDZUKI_DATA_PATH", dir)
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("ssh_timeout: [1, 2"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AKIDZUKI_DATA_PATH", dir)

	s := Defaults()
	s.DataPath = dir
	s.RecentLimit = 9
	s.SortBy = "last_used"
	if err := Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if Cfg.RecentLimit != 9 || Cfg.SortBy != "last_used" {
		t.Errorf("loaded RecentLimit=%d SortBy=%q, want 9 and last_used", Cfg.RecentLimit, Cfg.SortBy)
	}
}

func TestLoadLogLevel(t *testing.T) {
	for _, level := range []string{"DEBUG", "info", "WARN", "warning", "ERROR"} {
		t.Run(level, func(t *testing.T) {
			t.Setenv("AKIDZUKI_DATA_PATH", t.TempDir())
			t.Setenv("AKIDZUKI_LOG_LEVEL", level)
			if err := Load(); err != nil {
				t.Fatalf("Load with log_level %s: %v", level, err)
			}
		})
	}

	t.Setenv("AKIDZUKI_DATA_PATH", t.TempDir())
	t.Setenv("AKIDZUKI_LOG_LEVEL", "VERBOSE")
	err := Load()
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Fatalf("Load with log_level VERBOSE = %v, want log_level error", err)
	}
}
