package database

import (
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

// setupTestDB points DB at a fresh in-memory database for the test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	prev := DB
	DB = db
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		DB = prev
	})
	return db
}

func TestProfileDefaults(t *testing.T) {
	db := setupTestDB(t)

	p := Profile{Name: "web", Host: "10.0.0.5"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}

	var loaded Profile
	if err := db.First(&loaded, p.ID).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if loaded.Port != 22 {
		t.Errorf("expected Port default 22, got %d", loaded.Port)
	}
	if loaded.User != "root" {
		t.Errorf("expected User default root, got %q", loaded.User)
	}
	if loaded.LastUsed != nil {
		t.Errorf("expected LastUsed nil, got %v", loaded.LastUsed)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestProfileNameUnique(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Create(&Profile{Name: "web", Host: "a"}).Error; err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := db.Create(&Profile{Name: "web", Host: "b"}).Error; err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestProfileAddress(t *testing.T) {
	p := Profile{Name: "web", Host: "web"}
	if got := p.Address(); got != "web" {
		t.Errorf("Address() = %q, want web", got)
	}
	p.HostName = "10.0.0.5"
	if got := p.Address(); got != "10.0.0.5" {
		t.Errorf("Address() = %q, want 10.0.0.5", got)
	}
	if got := p.SecretKey(); got != "web@web" {
		t.Errorf("SecretKey() = %q, want web@web", got)
	}
}

func TestSettings(t *testing.T) {
	setupTestDB(t)

	if _, err := GetSetting("missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetSetting(missing) error = %v, want ErrRecordNotFound", err)
	}
	if err := SetSetting("k", "v1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := SetSetting("k", "v2"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, err := GetSetting("k")
	if err != nil || v != "v2" {
		t.Fatalf("GetSetting = %q, %v; want v2", v, err)
	}
	if err := DeleteSetting("k"); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, err := GetSetting("k"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "akidzuki.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
