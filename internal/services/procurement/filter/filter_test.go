package filter

import (
	"strings"
	"testing"
)

func TestParseOrderFilterEmpty(t *testing.T) {
	t.Parallel()

	cond, err := ParseOrderFilter("   ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Empty() || len(cond.Params) != 0 {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseOrderFilterEquality(t *testing.T) {
	t.Parallel()

	cond, err := ParseOrderFilter(`port = "Singapore"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "port = ?" {
		t.Fatalf("clause = %q, want %q", cond.Clause, "port = ?")
	}
	if len(cond.Params) != 1 || cond.Params[0] != "Singapore" {
		t.Fatalf("params = %v, want [Singapore]", cond.Params)
	}
}

func TestParseOrderFilterConjunction(t *testing.T) {
	t.Parallel()

	cond, err := ParseOrderFilter(`status = "processing" AND currency != "EUR"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(status = ? AND currency != ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 || cond.Params[0] != "processing" || cond.Params[1] != "EUR" {
		t.Fatalf("params = %v", cond.Params)
	}
}

func TestParseOrderFilterDisjunction(t *testing.T) {
	t.Parallel()

	cond, err := ParseOrderFilter(`port = "Rotterdam" OR port = "Antwerp"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(port = ? OR port = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
}

func TestParseOrderFilterRejectsUnknownFieldNamingAllowedOnes(t *testing.T) {
	t.Parallel()

	_, err := ParseOrderFilter(`grand_total = "10"`)
	if err == nil {
		t.Fatal("expected unknown field error")
	}
	for _, field := range OrderFields() {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not name field %q", err, field)
		}
	}
}

func TestParseOrderFilterNormalizesStatus(t *testing.T) {
	t.Parallel()

	cond, err := ParseOrderFilter(`NOT status = "Cancelled"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(NOT status = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 1 || cond.Params[0] != "cancelled" {
		t.Fatalf("params = %v, want [cancelled]", cond.Params)
	}

	if _, err := ParseOrderFilter(`status = "shipped"`); err == nil || !strings.Contains(err.Error(), "status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestOrderFieldsSorted(t *testing.T) {
	t.Parallel()

	fields := OrderFields()
	if len(fields) != 7 || fields[0] != "buyer_user_id" || fields[len(fields)-1] != "vendor_user_id" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestParseOrderFilterRejectsSyntaxError(t *testing.T) {
	t.Parallel()

	if _, err := ParseOrderFilter(`status = `); err == nil {
		t.Fatal("expected syntax error")
	}
}
