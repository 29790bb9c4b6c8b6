package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{name: "defaults applied", in: Params{}, want: Params{Page: 1, PageSize: DefaultPageSize}},
		{name: "negative page", in: Params{Page: -3, PageSize: 10}, want: Params{Page: 1, PageSize: 10}},
		{name: "capped page size", in: Params{Page: 2, PageSize: 500}, want: Params{Page: 2, PageSize: MaxPageSize}},
		{name: "passthrough", in: Params{Page: 4, PageSize: 50}, want: Params{Page: 4, PageSize: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Fatalf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, PageSize: 20}
	if got := p.Offset(); got != 40 {
		t.Fatalf("Offset() = %d, want 40", got)
	}
	if got := (Params{}).Offset(); got != 0 {
		t.Fatalf("Offset() for zero params = %d, want 0", got)
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 51, Params{Page: 1, PageSize: 25})
	if page.TotalPages != 3 {
		t.Fatalf("TotalPages = %d, want 3", page.TotalPages)
	}
	if page.Total != 51 || page.Page != 1 || page.PageSize != 25 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}

	empty := NewPage[string](nil, 0, Params{})
	if empty.Data == nil {
		t.Fatal("Data should never be nil")
	}
	if empty.TotalPages != 0 {
		t.Fatalf("TotalPages = %d, want 0", empty.TotalPages)
	}
}
