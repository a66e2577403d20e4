package paging

import "testing"

func TestPaginateClampsPages(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	p := Paginate(items, 3, 10)
	if p.TotalPages != 3 || len(p.Items) != 3 || p.Items[0] != 20 || p.HasNext() {
		t.Fatalf("unexpected last page: %+v", p)
	}
	if p := Paginate(items, 99, 10); p.Page != 3 {
		t.Fatalf("expected page clamped to 3, got %d", p.Page)
	}
	if p := Paginate(items, 0, 10); p.Page != 1 || !p.HasNext() || p.HasPrev() {
		t.Fatalf("unexpected first page: %+v", p)
	}
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate([]string(nil), 2, 0)
	if p.TotalPages != 1 || p.Page != 1 || len(p.Items) != 0 {
		t.Fatalf("unexpected empty page: %+v", p)
	}
}

func TestMatch(t *testing.T) {
	if !Match("", "anything") {
		t.Fatalf("empty query should match")
	}
	if !Match("SHIRT", "Blue shirt", "TS-01") {
		t.Fatalf("expected case-insensitive match")
	}
	if Match("denim", "Blue shirt", "TS-01") {
		t.Fatalf("unexpected match")
	}
}
