package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/formloom/gateway/internal/config"
	"github.com/formloom/gateway/internal/models"
)

func TestDSN(t *testing.T) {
	got := DSN(config.DatabaseConfig{User: "gw", Password: "pw", Host: "10.0.0.5", Port: 3307, Name: "gateway"})
	want := "gw:pw@tcp(10.0.0.5:3307)/gateway?parseTime=true&charset=utf8mb4"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}

	got = DSN(config.DatabaseConfig{User: "root", Host: "localhost", Port: 3306, Name: "gw"})
	if !strings.HasPrefix(got, "root@tcp(") {
		t.Errorf("DSN without password = %q", got)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err)
	}
}

func TestConnect_SqliteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	key := models.ApiKey{ID: "k1", Key: "sk_live_abc", TenantID: "t1", Scope: models.ScopeSecret, IsActive: true}
	if err := gdb.Create(&key).Error; err != nil {
		t.Fatalf("create key: %v", err)
	}

	var got models.ApiKey
	if err := gdb.First(&got, "key = ?", "sk_live_abc").Error; err != nil {
		t.Fatalf("read key: %v", err)
	}
	if got.TenantID != "t1" {
		t.Errorf("TenantID = %q, want t1", got.TenantID)
	}
}
