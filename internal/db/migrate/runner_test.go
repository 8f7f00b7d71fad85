package migrate

import (
	"strings"
	"testing"
)

func TestRunEmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %q, want mention of DATABASE_URL", err)
	}
}

func TestRunInvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "sideways", "UP", "Down"} {
		err := Run("postgres://localhost/test", direction)
		if err == nil {
			t.Errorf("Run(%q) should return error", direction)
			continue
		}
		if !strings.Contains(err.Error(), "direction") {
			t.Errorf("Run(%q) error = %q, want direction error", direction, err)
		}
	}
}

func TestRunMalformedDSN(t *testing.T) {
	if err := Run("not-a-dsn", "up"); err == nil {
		t.Error("Run with malformed DSN should return error")
	}
}
