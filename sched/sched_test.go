package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/vnode"
)

func add(n int) Updater {
	return func(old any) any {
		v, _ := old.(int)
		return v + n
	}
}

func mul(n int) Updater {
	return func(old any) any {
		v, _ := old.(int)
		return v * n
	}
}

type recorder struct {
	batches []*Batch
	err     error
}

func (r *recorder) flush(_ context.Context, b *Batch) error {
	r.batches = append(r.batches, b)
	return r.err
}

func TestBatchFold(t *testing.T) {
	b := NewBatch()
	b.Add(PendingUpdate{Component: "b", Updater: add(1), Seq: 1})
	b.Add(PendingUpdate{Component: "a", Updater: add(2), Seq: 2})
	b.Add(PendingUpdate{Component: "b", Updater: mul(10), Seq: 3})
	b.Add(PendingUpdate{Component: "b", Updater: add(3), Seq: 4})
	if b.Len() != 4 {
		t.Fatalf("len %d", b.Len())
	}
	if diff := cmp.Diff([]vnode.ComponentID{"b", "a"}, b.Components()); diff != "" {
		t.Error(diff)
	}
	states := render.NewStates()
	states.Set("b", 1)
	dirty, err := b.Fold(states)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[vnode.ComponentID]bool{"a": true, "b": true}, dirty); diff != "" {
		t.Error(diff)
	}
	// (1 + 1) * 10 + 3
	if v, _ := states.Get("b"); v != 23 {
		t.Errorf("b = %v", v)
	}
	if v, _ := states.Get("a"); v != 2 {
		t.Errorf("a = %v", v)
	}
}

func TestBatchFoldPanic(t *testing.T) {
	b := NewBatch()
	b.Add(PendingUpdate{Component: "a", Updater: func(any) any { panic("boom") }, Seq: 7})
	_, err := b.Fold(render.NewStates())
	if !errors.Is(err, ErrUpdater) {
		t.Fatalf("got %v", err)
	}
}

func TestEnqueueCoalesces(t *testing.T) {
	m := &Manual{}
	r := &recorder{}
	s := New(m, r.flush, nil)
	s.Enqueue("a", add(1))
	s.Enqueue("a", add(1))
	s.Enqueue("b", add(1))
	if len(r.batches) != 0 {
		t.Fatal("enqueue flushed synchronously")
	}
	if m.Due() != 1 {
		t.Fatalf("due %d", m.Due())
	}
	if s.Pending() != 3 {
		t.Fatalf("pending %d", s.Pending())
	}
	m.Turn()
	if len(r.batches) != 1 || r.batches[0].Len() != 3 {
		t.Fatalf("batches %d", len(r.batches))
	}
	if s.Pending() != 0 {
		t.Errorf("pending after flush %d", s.Pending())
	}
	s.Enqueue("a", add(1))
	m.Turn()
	if len(r.batches) != 2 {
		t.Errorf("batches %d", len(r.batches))
	}
}

func TestEnqueueDuringFlush(t *testing.T) {
	m := &Manual{}
	var s *Scheduler
	var sizes []int
	s = New(m, func(_ context.Context, b *Batch) error {
		sizes = append(sizes, b.Len())
		if len(sizes) == 1 {
			s.Enqueue("a", add(1))
			if err := s.Flush(context.Background()); !errors.Is(err, ErrReentrantFlush) {
				t.Errorf("reentrant flush: %v", err)
			}
		}
		return nil
	}, nil)
	s.Enqueue("a", add(1))
	s.Enqueue("a", add(1))
	m.Turn()
	if diff := cmp.Diff([]int{2}, sizes); diff != "" {
		t.Fatal(diff)
	}
	m.Turn()
	if diff := cmp.Diff([]int{2, 1}, sizes); diff != "" {
		t.Error(diff)
	}
}

func TestWithBatch(t *testing.T) {
	ctx := context.Background()
	m := &Manual{}
	r := &recorder{}
	s := New(m, r.flush, nil)
	err := s.WithBatch(ctx, func() {
		s.Enqueue("a", add(1))
		if err := s.WithBatch(ctx, func() {
			s.Enqueue("a", add(1))
		}); err != nil {
			t.Error(err)
		}
		if len(r.batches) != 0 {
			t.Error("inner scope flushed")
		}
		s.Enqueue("b", add(1))
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.batches) != 1 || r.batches[0].Len() != 3 {
		t.Fatalf("batches %v", len(r.batches))
	}
	if m.Due() != 0 {
		t.Errorf("scope scheduled %d boundary flushes", m.Due())
	}
	if err := s.WithBatch(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	if len(r.batches) != 1 {
		t.Error("empty scope flushed")
	}
}

func TestWithBatchError(t *testing.T) {
	boom := errors.New("boom")
	r := &recorder{err: boom}
	s := New(&Manual{}, r.flush, nil)
	err := s.WithBatch(context.Background(), func() { s.Enqueue("a", add(1)) })
	if !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestWithBatchPanic(t *testing.T) {
	r := &recorder{}
	s := New(&Manual{}, r.flush, nil)
	func() {
		defer func() {
			if p := recover(); p != "boom" {
				t.Errorf("recovered %v", p)
			}
		}()
		_ = s.WithBatch(context.Background(), func() {
			s.Enqueue("a", add(1))
			panic("boom")
		})
	}()
	if len(r.batches) != 1 {
		t.Errorf("batches %d", len(r.batches))
	}
}

func TestScheduledFlushError(t *testing.T) {
	boom := errors.New("boom")
	m := &Manual{}
	var got []error
	s := New(m, (&recorder{err: boom}).flush, &Options{OnError: func(err error) { got = append(got, err) }})
	s.Enqueue("a", add(1))
	m.Turn()
	if len(got) != 1 || !errors.Is(got[0], boom) {
		t.Errorf("got %v", got)
	}
}

func TestLoopTurns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := NewLoop()
	r := &recorder{}
	s := New(l, r.flush, nil)
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	err := l.Do(ctx, func() {
		for i := 0; i < 5; i++ {
			s.Enqueue("a", add(1))
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Do(ctx, func() { s.Enqueue("b", add(1)) }); err != nil {
		t.Fatal(err)
	}
	var sizes []int
	if err := l.Do(ctx, func() {
		for _, b := range r.batches {
			sizes = append(sizes, b.Len())
		}
	}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{5, 1}, sizes); diff != "" {
		t.Error(diff)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("run: %v", err)
	}
}

func TestLoopDeferOutsideTurn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l := NewLoop()
	go l.Run(ctx)
	ran := make(chan struct{})
	l.Defer(func() { close(ran) })
	select {
	case <-ran:
	case <-ctx.Done():
		t.Fatal("deferred function never ran")
	}
}
