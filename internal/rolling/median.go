package rolling

import (
	"container/heap"
)

// maxHeap and minHeap back the two halves of MedianWindow.
type maxHeap []float64

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(float64)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type minHeap []float64

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(float64)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// MedianWindow maintains the median of the last Size values.
//
// lo holds the smaller half (max-heap), hi the larger half (min-heap).
// Evicted values are recorded in delayed and dropped lazily when they reach
// a heap top, so each Push costs O(log W) amortized. loSize and hiSize count
// live elements only; the heaps may hold extra delayed entries. Non-finite
// values take a slot in buf but never enter the heaps.
type MedianWindow struct {
	size    int
	buf     []float64
	head    int
	filled  int
	lo      maxHeap
	hi      minHeap
	loSize  int
	hiSize  int
	delayed map[float64]int
}

// NewMedianWindow returns a MedianWindow of the given size. Size must be positive.
func NewMedianWindow(size int) *MedianWindow {
	if size <= 0 {
		panic("rolling: window size must be positive")
	}
	return &MedianWindow{
		size:    size,
		buf:     make([]float64, size),
		delayed: make(map[float64]int),
	}
}

// Push adds x, evicting the oldest value once the window is full.
func (m *MedianWindow) Push(x float64) {
	if m.filled == m.size {
		old := m.buf[m.head]
		m.buf[m.head] = x
		m.head = (m.head + 1) % m.size
		if finite(x) {
			m.insert(x)
		}
		if finite(old) {
			m.remove(old)
		}
		return
	}
	m.buf[(m.head+m.filled)%m.size] = x
	m.filled++
	if finite(x) {
		m.insert(x)
	}
}

// Len returns the number of finite values currently in the window.
func (m *MedianWindow) Len() int { return m.loSize + m.hiSize }

// Median returns the median of the finite values, averaging the two middle
// values for an even count. Returns 0 when there are none.
func (m *MedianWindow) Median() float64 {
	if m.loSize+m.hiSize == 0 {
		return 0
	}
	if m.loSize > m.hiSize {
		return m.lo[0]
	}
	return (m.lo[0] + m.hi[0]) / 2
}

func (m *MedianWindow) insert(x float64) {
	if m.lo.Len() == 0 || x <= m.lo[0] {
		heap.Push(&m.lo, x)
		m.loSize++
	} else {
		heap.Push(&m.hi, x)
		m.hiSize++
	}
	m.rebalance()
}

func (m *MedianWindow) remove(x float64) {
	m.delayed[x]++
	if m.lo.Len() > 0 && x <= m.lo[0] {
		m.loSize--
		if x == m.lo[0] {
			m.pruneLo()
		}
	} else {
		m.hiSize--
		if m.hi.Len() > 0 && x == m.hi[0] {
			m.pruneHi()
		}
	}
	m.rebalance()
}

// rebalance keeps loSize == hiSize or loSize == hiSize+1.
func (m *MedianWindow) rebalance() {
	if m.loSize > m.hiSize+1 {
		heap.Push(&m.hi, heap.Pop(&m.lo).(float64))
		m.loSize--
		m.hiSize++
		m.pruneLo()
	} else if m.loSize < m.hiSize {
		heap.Push(&m.lo, heap.Pop(&m.hi).(float64))
		m.hiSize--
		m.loSize++
		m.pruneHi()
	}
}

func (m *MedianWindow) pruneLo() {
	for m.lo.Len() > 0 {
		top := m.lo[0]
		c := m.delayed[top]
		if c == 0 {
			return
		}
		m.consume(top, c)
		heap.Pop(&m.lo)
	}
}

func (m *MedianWindow) pruneHi() {
	for m.hi.Len() > 0 {
		top := m.hi[0]
		c := m.delayed[top]
		if c == 0 {
			return
		}
		m.consume(top, c)
		heap.Pop(&m.hi)
	}
}

func (m *MedianWindow) consume(x float64, c int) {
	if c == 1 {
		delete(m.delayed, x)
		return
	}
	m.delayed[x] = c - 1
}
