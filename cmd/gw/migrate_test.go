package main

import (
	"strings"
	"testing"
)

func TestMigrateCmd(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCmd(t, "migrate", "-c", cfg)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "Migrated 4 tables") {
		t.Errorf("output = %q", out)
	}

	// Re-running is idempotent.
	if _, err := runCmd(t, "migrate", "-c", cfg); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestMigrateCmd_MissingConfig(t *testing.T) {
	if _, err := runCmd(t, "migrate", "-c", "/nonexistent/gateway.yaml"); err == nil {
		t.Error("expected error for missing config")
	}
}
