//go:build !integration

package gateway

import (
	"testing"
	"time"

	"market-ai-pipeline/internal/domain/model"
)

func req(prompt string, priority int) *model.CompletionRequest {
	return model.NewCompletionRequest(prompt, "", priority, time.Second, nil)
}

func TestRequestQueue_PriorityOrder(t *testing.T) {
	q := newRequestQueue()
	q.Push(req("p5-a", 5))
	q.Push(req("p1", 1))
	q.Push(req("p5-b", 5))
	q.Push(req("p3", 3))

	want := []string{"p1", "p3", "p5-a", "p5-b"}
	for i, w := range want {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if got.Prompt != w {
			t.Errorf("pop %d: expected %s, got %s", i, w, got.Prompt)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue after draining")
	}
}

func TestRequestQueue_EqualPrioritiesStayFIFO(t *testing.T) {
	q := newRequestQueue()
	for _, p := range []string{"a", "b", "c", "d", "e"} {
		q.Push(req(p, 2))
	}
	for _, w := range []string{"a", "b", "c", "d", "e"} {
		got, _ := q.Pop()
		if got.Prompt != w {
			t.Fatalf("expected %s, got %s", w, got.Prompt)
		}
	}
}

func TestRequestQueue_Len(t *testing.T) {
	q := newRequestQueue()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, len=%d", q.Len())
	}
	q.Push(req("a", 1))
	q.Push(req("b", 2))
	if q.Len() != 2 {
		t.Errorf("expected len 2, got %d", q.Len())
	}
	q.Pop()
	if q.Len() != 1 {
		t.Errorf("expected len 1 after pop, got %d", q.Len())
	}
}
