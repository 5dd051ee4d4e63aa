package frontier

import (
	"fmt"
	"testing"
)

func TestAddDeduplicates(t *testing.T) {
	f := New(FIFO)

	if !f.Add("https://example.com/a") {
		t.Error("Expected first insert to be new")
	}
	if f.Add("https://example.com/a") {
		t.Error("Expected duplicate insert to collapse")
	}
	if f.Len() != 1 {
		t.Errorf("Expected one entry, got %d", f.Len())
	}
}

func TestFIFOOrder(t *testing.T) {
	f := New(FIFO)
	f.Add("a")
	f.Add("b")
	f.Add("a")
	f.Add("c")

	want := []string{"a", "b", "c"}
	for _, expected := range want {
		got, ok := f.Next()
		if !ok || got != expected {
			t.Errorf("Expected %q, got %q ok=%v", expected, got, ok)
		}
	}
	if !f.IsEmpty() {
		t.Error("Expected frontier drained")
	}
}

func TestLIFOOrder(t *testing.T) {
	f := New(LIFO)
	f.Add("a")
	f.Add("b")
	f.Add("c")

	want := []string{"c", "b", "a"}
	for _, expected := range want {
		got, _ := f.Next()
		if got != expected {
			t.Errorf("Expected %q, got %q", expected, got)
		}
	}
}

func TestEverAddedSemantics(t *testing.T) {
	f := New(FIFO)
	f.Add("a")
	f.Next()

	if f.Add("a") {
		t.Error("Expected dequeued entry to stay deduplicated")
	}
	if !f.IsEmpty() {
		t.Error("Expected no re-enqueue")
	}
}

func TestDistinctDequeuedEqualsDistinctEnqueued(t *testing.T) {
	f := New(FIFO)

	distinct := 100
	for round := 0; round < 3; round++ {
		for i := 0; i < distinct; i++ {
			f.Add(fmt.Sprintf("https://example.com/page/%d", i))
		}
	}

	seen := make(map[string]bool)
	for !f.IsEmpty() {
		url, _ := f.Next()
		if seen[url] {
			t.Errorf("Dequeued %q twice", url)
		}
		seen[url] = true
	}
	if len(seen) != distinct {
		t.Errorf("Expected %d distinct dequeues, got %d", distinct, len(seen))
	}
}
