package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hardcore/internal/bootstrap/config"
)

func TestMySQLDSNFromParts(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Driver:   "mysql",
		Host:     "db.internal",
		Port:     3307,
		Name:     "hardcore",
		Username: "hc",
		Password: "secret",
	})

	for _, want := range []string{"hc:secret@tcp(db.internal:3307)/hardcore", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("MySQLDSN() = %q, missing %q", dsn, want)
		}
	}
}

func TestMySQLDSNPrefersExplicit(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{DSN: "u:p@tcp(h:1)/d", Host: "ignored"})
	if dsn != "u:p@tcp(h:1)/d" {
		t.Fatalf("MySQLDSN() = %q", dsn)
	}
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "state.sqlite"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("sqlite directory not created: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("Open() expected error for unknown driver")
	}
}

func TestOpenMySQLToleratesUnreachableServer(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "mysql",
		Host:   "127.0.0.1",
		Port:   1,
		Name:   "hardcore",
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(context.Background()); err == nil {
		t.Fatalf("PingContext() expected error for unreachable server")
	}
}
