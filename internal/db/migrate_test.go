package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationVersions_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_indexes.sql": {Data: []byte("SELECT 1;")},
		"migrations/0001_init.sql":    {Data: []byte("SELECT 1;")},
		"migrations/README.md":        {Data: []byte("notes")},
	}
	got, err := migrationVersions(fsys)
	if err != nil {
		t.Fatalf("migrationVersions: %v", err)
	}
	if len(got) != 2 || got[0] != "0001_init.sql" || got[1] != "0002_indexes.sql" {
		t.Fatalf("unexpected versions: %v", got)
	}
}

func TestEmbeddedMigrations_CreateCoreTables(t *testing.T) {
	versions, err := migrationVersions(migrationFiles)
	if err != nil {
		t.Fatalf("migrationVersions: %v", err)
	}
	if len(versions) == 0 {
		t.Fatalf("no embedded migrations")
	}
	body, err := migrationFiles.ReadFile("migrations/" + versions[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"tenants", "users", "products", "orders", "order_lines", "notifications"} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("initial migration does not create %s", table)
		}
	}
}

func TestEmbeddedMigrations_AllowOrderPlacedNotifications(t *testing.T) {
	versions, err := migrationVersions(migrationFiles)
	if err != nil {
		t.Fatalf("migrationVersions: %v", err)
	}
	last, err := migrationFiles.ReadFile("migrations/" + versions[len(versions)-1])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(last), "'order_placed'") {
		t.Fatalf("latest migration %s does not allow order_placed notifications", versions[len(versions)-1])
	}
}
