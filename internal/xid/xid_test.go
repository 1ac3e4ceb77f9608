package xid

import (
	"testing"
	"time"
)

func TestNextIsStrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1704412800000)
	g := NewGenerator(func() time.Time { return fixed })

	first := g.Next()
	second := g.Next()
	if first != "1704412800000" {
		t.Fatalf("expected millisecond id, got %s", first)
	}
	if second != "1704412800001" {
		t.Fatalf("expected bumped id, got %s", second)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
