package keyspace

import (
	"github.com/spineldb/spineldb/pkg/types"
)

// lruNode is the doubly-linked list node backing a shard's access order.
// types.Entry.LRUHandle points at the node owning that entry so touch/
// remove are O(1).
type lruNode struct {
	entry      *types.Entry
	prev, next *lruNode
}

// lruList is an approximate LRU ordering: exact doubly-linked order at the
// front/back, but eviction uses random-K sampling (spec.md §4.5) rather
// than always evicting the exact tail, which is the standard way to
// amortize the cost of maintaining strict order under heavy write load.
type lruList struct {
	head, tail *lruNode
	nodes      map[*types.Entry]*lruNode
}

func newLRUList() *lruList {
	return &lruList{nodes: make(map[*types.Entry]*lruNode)}
}

func (l *lruList) pushFront(e *types.Entry) {
	n := &lruNode{entry: e}
	e.LRUHandle = n
	l.nodes[e] = n
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruList) touch(e *types.Entry) {
	n, ok := l.nodes[e]
	if !ok || n == l.head {
		return
	}
	l.unlink(n)
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruList) remove(e *types.Entry) {
	n, ok := l.nodes[e]
	if !ok {
		return
	}
	l.unlink(n)
	delete(l.nodes, e)
	e.LRUHandle = nil
}

func (l *lruList) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if l.head == n {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// oldestSample chooses K random candidates from data and returns the one
// with the oldest LastAccess, restricting to keys with a TTL when
// volatileOnly is set. This is the "approximate sampling" eviction scheme
// spec.md §4.5 calls for instead of always walking to the exact LRU tail.
func (l *lruList) oldestSample(data map[string]*types.Entry, k int, volatileOnly bool) string {
	if len(data) == 0 {
		return ""
	}
	best := ""
	var bestAccess int64 = 1<<63 - 1
	seen := 0
	// map iteration order is already randomized by the runtime, so a
	// prefix of the iteration approximates a random sample.
	for key, e := range data {
		if volatileOnly && !e.HasTTL() {
			continue
		}
		if e.LastAccess.UnixNano() < bestAccess {
			best, bestAccess = key, e.LastAccess.UnixNano()
		}
		seen++
		if seen >= k {
			break
		}
	}
	return best
}
