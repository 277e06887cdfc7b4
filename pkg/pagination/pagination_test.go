package pagination

import "testing"

func TestNormalize(t *testing.T) {
	p := Params{Page: 0, Limit: 0}.Normalize()
	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Fatalf("unexpected defaults: %+v", p)
	}

	p = Params{Page: 3, Limit: MaxLimit + 50}.Normalize()
	if p.Limit != MaxLimit {
		t.Fatalf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
	if p.Page != 3 {
		t.Fatalf("expected page preserved, got %d", p.Page)
	}
}

func TestOffset(t *testing.T) {
	if got := (Params{Page: 1, Limit: 20}).Offset(); got != 0 {
		t.Fatalf("expected offset 0, got %d", got)
	}
	if got := (Params{Page: 4, Limit: 20}).Offset(); got != 60 {
		t.Fatalf("expected offset 60, got %d", got)
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(Params{Page: 2, Limit: 10}, 25)
	if !meta.HasMore {
		t.Fatal("expected has_more for 25 rows at page 2 of 10")
	}
	meta = NewMeta(Params{Page: 3, Limit: 10}, 25)
	if meta.HasMore {
		t.Fatal("expected has_more false on final page")
	}
}
