// Package frontier implements the crawl work queue: an insertion-ordered,
// duplicate-free set of URLs drained in FIFO or LIFO order.
package frontier

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// Bloom filter sized for ~1M URLs at 1% false positives. The filter only
// short-circuits definite misses; membership truth lives in the exact map.
const bloomCapacity = 1_000_000

// Order selects which end of the queue Next pops from.
type Order int

const (
	// FIFO yields breadth-first-like traversal relative to discovery order.
	FIFO Order = iota
	// LIFO yields the most recently inserted entry first.
	LIFO
)

// Frontier is an ordered set queue. Entries are expected to be defragmented
// before insertion; the frontier itself treats values as opaque keys.
type Frontier struct {
	order   Order
	queue   []string
	members map[string]bool
	maybe   *bloom.BloomFilter
}

// New creates an empty frontier draining in the given order.
func New(order Order) *Frontier {
	return &Frontier{
		order:   order,
		members: make(map[string]bool),
		maybe:   bloom.NewWithEstimates(bloomCapacity, 0.01),
	}
}

// Add inserts url unless an equal entry was ever added before. Returns true
// when the entry is new. Duplicates collapse silently, preserving the
// position of the first insertion.
func (f *Frontier) Add(url string) bool {
	key := []byte(url)
	if f.maybe.Test(key) && f.members[url] {
		return false
	}
	f.maybe.Add(key)
	if f.members[url] {
		return false
	}
	f.members[url] = true
	f.queue = append(f.queue, url)
	return true
}

// Next removes and returns the next entry per the frontier's order. ok is
// false when the frontier is empty.
func (f *Frontier) Next() (url string, ok bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	if f.order == LIFO {
		url = f.queue[len(f.queue)-1]
		f.queue = f.queue[:len(f.queue)-1]
	} else {
		url = f.queue[0]
		f.queue = f.queue[1:]
	}
	return url, true
}

// IsEmpty reports whether no entries remain.
func (f *Frontier) IsEmpty() bool { return len(f.queue) == 0 }

// Len returns the number of pending entries.
func (f *Frontier) Len() int { return len(f.queue) }
