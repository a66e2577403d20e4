package xid

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewIsPrefixedUUID(t *testing.T) {
	a, b := New("idem"), New("idem")
	if a == b {
		t.Fatalf("expected unique ids")
	}
	if !strings.HasPrefix(a, "idem-") {
		t.Fatalf("unexpected id %q", a)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a, "idem-")); err != nil {
		t.Fatalf("expected uuid suffix: %v", err)
	}
}

func TestDocument(t *testing.T) {
	got := Document("INV", time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 7)
	if got != "INV-20261018-0007" {
		t.Fatalf("unexpected document number %q", got)
	}
}
