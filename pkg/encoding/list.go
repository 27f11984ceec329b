package encoding

import "github.com/spineldb/spineldb/pkg/types"

// listChunkSize bounds per-node allocation so a single RPUSH of many
// elements doesn't force one giant contiguous slice (spec.md §4.4: "Lists
// are chunked doubly-linked sequences to bound per-operation allocation").
const listChunkSize = 128

type listChunk struct {
	items      []string
	prev, next *listChunk
}

// ListValue is a chunked doubly-linked sequence. Push/pop at either end is
// O(1) amortized; indexing and insert-around-pivot are O(n) in the number
// of chunks touched.
type ListValue struct {
	head, tail *listChunk
	length     int
}

func NewList() *ListValue { return &ListValue{} }

func (l *ListValue) Type() types.ValueType { return types.TypeList }

func (l *ListValue) SizeEstimate() int64 {
	var sz int64 = 32
	for c := l.head; c != nil; c = c.next {
		for _, it := range c.items {
			sz += int64(len(it)) + 16
		}
	}
	return sz
}

func (l *ListValue) Len() int { return l.length }

// PushLeft inserts values at the head, in the given argument order (so
// LPUSH a b c results in [c, b, a], matching Redis semantics).
func (l *ListValue) PushLeft(values ...string) {
	for _, v := range values {
		if l.head == nil || len(l.head.items) >= listChunkSize {
			c := &listChunk{items: make([]string, 0, listChunkSize), next: l.head}
			if l.head != nil {
				l.head.prev = c
			}
			l.head = c
			if l.tail == nil {
				l.tail = c
			}
		}
		c := l.head
		c.items = append([]string{v}, c.items...)
		l.length++
	}
}

// PushRight appends values at the tail, in argument order.
func (l *ListValue) PushRight(values ...string) {
	for _, v := range values {
		if l.tail == nil || len(l.tail.items) >= listChunkSize {
			c := &listChunk{items: make([]string, 0, listChunkSize), prev: l.tail}
			if l.tail != nil {
				l.tail.next = c
			}
			l.tail = c
			if l.head == nil {
				l.head = c
			}
		}
		l.tail.items = append(l.tail.items, v)
		l.length++
	}
}

// PopLeft removes and returns the first element, or ("", false) if empty.
func (l *ListValue) PopLeft() (string, bool) {
	if l.head == nil || len(l.head.items) == 0 {
		return "", false
	}
	v := l.head.items[0]
	l.head.items = l.head.items[1:]
	l.length--
	if len(l.head.items) == 0 && l.head.next != nil {
		l.head = l.head.next
		l.head.prev = nil
	} else if len(l.head.items) == 0 {
		l.head, l.tail = nil, nil
	}
	return v, true
}

// PopRight removes and returns the last element, or ("", false) if empty.
func (l *ListValue) PopRight() (string, bool) {
	if l.tail == nil || len(l.tail.items) == 0 {
		return "", false
	}
	items := l.tail.items
	v := items[len(items)-1]
	l.tail.items = items[:len(items)-1]
	l.length--
	if len(l.tail.items) == 0 && l.tail.prev != nil {
		l.tail = l.tail.prev
		l.tail.next = nil
	} else if len(l.tail.items) == 0 {
		l.head, l.tail = nil, nil
	}
	return v, true
}

// Index returns the element at a 0-based index (negative counts from the
// tail), or ("", false) if out of range.
func (l *ListValue) Index(i int) (string, bool) {
	if i < 0 {
		i += l.length
	}
	if i < 0 || i >= l.length {
		return "", false
	}
	pos := 0
	for c := l.head; c != nil; c = c.next {
		if i < pos+len(c.items) {
			return c.items[i-pos], true
		}
		pos += len(c.items)
	}
	return "", false
}

// Range returns elements from start to stop inclusive (Redis LRANGE
// semantics: negative indices count from the tail, clamped to bounds).
func (l *ListValue) Range(start, stop int) []string {
	n := l.length
	start, stop = clampRange(start, stop, n)
	if start > stop {
		return nil
	}
	out := make([]string, 0, stop-start+1)
	pos := 0
	for c := l.head; c != nil; c = c.next {
		for _, it := range c.items {
			if pos >= start && pos <= stop {
				out = append(out, it)
			}
			pos++
			if pos > stop {
				return out
			}
		}
	}
	return out
}

// All returns every element in order, used by SORT and AOF rewrite.
func (l *ListValue) All() []string { return l.Range(0, -1) }

func clampRange(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

// Set overwrites the element at index i; returns false if out of range.
func (l *ListValue) Set(i int, v string) bool {
	if i < 0 {
		i += l.length
	}
	if i < 0 || i >= l.length {
		return false
	}
	pos := 0
	for c := l.head; c != nil; c = c.next {
		if i < pos+len(c.items) {
			c.items[i-pos] = v
			return true
		}
		pos += len(c.items)
	}
	return false
}

// InsertBefore/InsertAfter insert pivot-relative (LINSERT); returns the new
// length, or -1 if pivot isn't found.
func (l *ListValue) InsertBefore(pivot, v string) int { return l.insertAround(pivot, v, 0) }
func (l *ListValue) InsertAfter(pivot, v string) int  { return l.insertAround(pivot, v, 1) }

func (l *ListValue) insertAround(pivot, v string, offset int) int {
	all := l.All()
	idx := -1
	for i, it := range all {
		if it == pivot {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1
	}
	pos := idx + offset
	all = append(all[:pos], append([]string{v}, all[pos:]...)...)
	l.rebuild(all)
	return l.length
}

func (l *ListValue) rebuild(items []string) {
	l.head, l.tail, l.length = nil, nil, 0
	l.PushRight(items...)
}

// RemoveCount removes up to count occurrences of v (count<0 scans from the
// tail, count==0 removes all), returning the number removed.
func (l *ListValue) RemoveCount(v string, count int) int {
	all := l.All()
	out := make([]string, 0, len(all))
	removed := 0
	if count >= 0 {
		limit := count
		for _, it := range all {
			if it == v && (limit == 0 || removed < limit) {
				removed++
				continue
			}
			out = append(out, it)
		}
	} else {
		limit := -count
		for i := len(all) - 1; i >= 0; i-- {
			it := all[i]
			if it == v && removed < limit {
				removed++
				continue
			}
			out = append([]string{it}, out...)
		}
	}
	l.rebuild(out)
	return removed
}

// Trim keeps only elements from start to stop inclusive.
func (l *ListValue) Trim(start, stop int) {
	l.rebuild(l.Range(start, stop))
}
