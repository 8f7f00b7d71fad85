package db

import (
	"os"
	"testing"
)

func TestOpenEmptyDSN(t *testing.T) {
	db, err := Open("")
	if err == nil {
		db.Close()
		t.Fatal("Open with empty DSN should return error")
	}
	if db != nil {
		t.Error("Open should return nil db on error")
	}
}

func TestOpenMalformedDSN(t *testing.T) {
	for _, dsn := range []string{"not-a-dsn", "://localhost/test"} {
		db, err := Open(dsn)
		if err == nil {
			db.Close()
			t.Errorf("Open(%q) should return error", dsn)
			continue
		}
		if db != nil {
			t.Errorf("Open(%q) should return nil db on error", dsn)
		}
	}
}

func TestOpenIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var result int
	if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
		t.Fatalf("SELECT 1: %v", err)
	}
	if result != 1 {
		t.Errorf("SELECT 1 = %d", result)
	}
}
