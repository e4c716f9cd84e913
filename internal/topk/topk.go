// Package topk keeps the K best-scoring items of a stream in O(K) memory.
package topk

import "container/heap"

type entry[T any] struct {
	item  T
	score float64
	seq   uint64
}

// worse reports whether a ranks below b. Equal scores rank by arrival:
// the earlier item is the better one.
func worse[T any](a, b entry[T]) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.seq > b.seq
}

// minHeap keeps the worst retained entry at the root.
type minHeap[T any] []entry[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap[T]) Push(x any)        { *h = append(*h, x.(entry[T])) }
func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Selector retains the K highest-scoring items pushed into it.
// A Selector is not safe for concurrent use.
type Selector[T any] struct {
	limit int
	heap  minHeap[T]
	seq   uint64
}

// New returns a selector holding at most limit items. A limit <= 0 means
// unbounded: nothing is ever evicted.
func New[T any](limit int) *Selector[T] {
	s := &Selector[T]{limit: limit}
	if limit > 0 && limit <= 1024 {
		s.heap = make(minHeap[T], 0, limit+1)
	}
	return s
}

// Push offers an item. It reports whether an item (possibly this one) was
// dropped because the selector was full.
func (s *Selector[T]) Push(item T, score float64) bool {
	e := entry[T]{item: item, score: score, seq: s.seq}
	s.seq++

	if s.limit <= 0 || len(s.heap) < s.limit {
		heap.Push(&s.heap, e)
		return false
	}
	if worse(e, s.heap[0]) {
		return true
	}
	s.heap[0] = e
	heap.Fix(&s.heap, 0)
	return true
}

// Len returns the number of retained items.
func (s *Selector[T]) Len() int {
	return len(s.heap)
}

// Items drains the selector, best item first. The selector is empty afterwards.
func (s *Selector[T]) Items() []T {
	out := make([]T, len(s.heap))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&s.heap).(entry[T]).item
	}
	return out
}
