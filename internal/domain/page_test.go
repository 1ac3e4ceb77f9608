package domain

import (
	"math"
	"slices"
	"testing"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	cases := []struct {
		name     string
		page     int
		pageSize int
		want     []int
	}{
		{"first page", 1, 3, []int{1, 2, 3}},
		{"last partial page", 3, 3, []int{7}},
		{"past the end", 4, 3, []int{}},
		{"defaults", 0, 0, []int{1, 2, 3, 4, 5, 6, 7}},
		{"huge page", math.MaxInt / 50, 100, []int{}},
		{"max page", math.MaxInt, 100, []int{}},
		{"huge page size", 1, math.MaxInt, []int{1, 2, 3, 4, 5, 6, 7}},
	}
	for _, tc := range cases {
		got := Paginate(items, tc.page, tc.pageSize)
		if !slices.Equal(got.Items, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got.Items)
		}
		if got.Total != len(items) {
			t.Fatalf("%s: expected total %d, got %d", tc.name, len(items), got.Total)
		}
	}
}

func TestPaginateEmptyKeepsItemsNonNil(t *testing.T) {
	got := Paginate([]string(nil), 1, 10)
	if got.Items == nil || len(got.Items) != 0 || got.Total != 0 {
		t.Fatalf("unexpected page %+v", got)
	}
}
