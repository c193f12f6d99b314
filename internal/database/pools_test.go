package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// testDatabaseURL returns DATABENCH_TEST_DATABASE_URL or skips the test.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABENCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DATABENCH_TEST_DATABASE_URL not set")
	}
	return url
}

func TestConnectURL_InvalidPort(t *testing.T) {
	_, err := ConnectURL(context.Background(), "postgres://user@localhost:notaport/db")
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestEnsureSchema(t *testing.T) {
	url := testDatabaseURL(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := ConnectURL(ctx, url)
	if err != nil {
		t.Fatalf("ConnectURL failed: %v", err)
	}
	defer pool.Close()

	// Twice: every statement must be idempotent.
	for i := 0; i < 2; i++ {
		if err := EnsureSchema(ctx, pool); err != nil {
			t.Fatalf("EnsureSchema run %d failed: %v", i+1, err)
		}
	}

	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM signal_log WHERE false`).Scan(&n); err != nil {
		t.Errorf("signal_log not queryable: %v", err)
	}
}
