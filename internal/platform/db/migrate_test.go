package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMigrationsSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_users.sql", "CREATE TABLE users (uid TEXT);")
	writeFile(t, dir, "001_init.sql", "CREATE TABLE kv_slots (user_id TEXT);")
	writeFile(t, dir, "notes.txt", "not a migration")
	writeFile(t, dir, "README.sql", "no numeric prefix")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("order = %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "001_init.sql" {
		t.Errorf("name = %q", migrations[0].Name)
	}
	if migrations[0].SQL == "" {
		t.Error("SQL content not loaded")
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/path")
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
