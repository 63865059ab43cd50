// File: internal/infra/gateway/priority_queue.go
package gateway

import (
	"container/heap"
	"sync"

	"market-ai-pipeline/internal/domain/model"
)

// requestHeap orders by priority (lower number first), then by arrival
// sequence so equal priorities stay FIFO.
type requestHeap []*model.CompletionRequest

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(*model.CompletionRequest)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// requestQueue is a thread-safe stable priority queue of pending requests.
type requestQueue struct {
	mu  sync.Mutex
	h   requestHeap
	seq uint64
}

func newRequestQueue() *requestQueue {
	return &requestQueue{h: requestHeap{}}
}

func (q *requestQueue) Push(req *model.CompletionRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	req.Seq = q.seq
	heap.Push(&q.h, req)
}

// PushBounded pushes unless the queue already holds max items. The length
// check and the push happen under one lock so concurrent pushers cannot
// overshoot the ceiling.
func (q *requestQueue) PushBounded(req *model.CompletionRequest, max int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) >= max {
		return false
	}
	q.seq++
	req.Seq = q.seq
	heap.Push(&q.h, req)
	return true
}

func (q *requestQueue) Pop() (*model.CompletionRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*model.CompletionRequest), true
}

func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}
