package sqlstore

import (
	"context"
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"a = ? AND b = ?", "a = $1 AND b = $2"},
		{"status IN ('submitted', 'why?') AND id = ?", "status IN ('submitted', 'why?') AND id = $1"},
	}
	for _, tc := range tests {
		if got := Rebind(tc.in); got != tc.want {
			t.Fatalf("Rebind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStoreRebindsOnlyNumberedDialects(t *testing.T) {
	t.Parallel()

	sqlite := New(nil, Dialect{Name: "sqlite"})
	if got := sqlite.q("id = ?"); got != "id = ?" {
		t.Fatalf("sqlite q = %q", got)
	}
	postgres := New(nil, Dialect{Name: "postgres", NumberedParams: true})
	if got := postgres.q("id = ?"); got != "id = $1" {
		t.Fatalf("postgres q = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	if got := placeholders(3); got != "?, ?, ?" {
		t.Fatalf("placeholders(3) = %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Fatalf("placeholders(0) = %q", got)
	}
}

func TestMicrosRoundTrip(t *testing.T) {
	t.Parallel()

	in := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("x", 3600))
	got := fromMicros(toMicros(in))
	want := in.UTC().Truncate(time.Microsecond)
	if !got.Equal(want) {
		t.Fatalf("round trip = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("location = %v, want UTC", got.Location())
	}
}

func TestNilStoreNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.GetRFQ(context.Background(), "rfq-1"); err == nil {
		t.Fatal("expected error from nil store")
	}
	if store.DB() != nil {
		t.Fatal("expected nil DB for nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}
