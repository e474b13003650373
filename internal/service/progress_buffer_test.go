package service

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"
	"sync"
	"testing"
	"time"
)

type writeCall struct {
	key    model.ProgressKey
	events []AnswerEvent
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []writeCall
	fail  map[model.ProgressKey]bool
	done  chan struct{}
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{fail: map[model.ProgressKey]bool{}, done: make(chan struct{}, 16)}
}

func (w *fakeWriter) ApplyAnswers(_ context.Context, key model.ProgressKey, events []AnswerEvent) (*model.ProgressRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func() { w.done <- struct{}{} }()
	if w.fail[key] {
		return nil, errors.New("store unavailable")
	}
	w.calls = append(w.calls, writeCall{key: key, events: append([]AnswerEvent(nil), events...)})
	return model.NewProgressRecord(key), nil
}

func (w *fakeWriter) setFail(key model.ProgressKey, fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail[key] = fail
}

func (w *fakeWriter) snapshot() []writeCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]writeCall(nil), w.calls...)
}

func answer(user, topic, question string) AnswerEvent {
	return AnswerEvent{UserID: user, Area: "JEE", Topic: topic, QuestionID: question, Correct: true}
}

func TestBufferFlushesInEnqueueOrder(t *testing.T) {
	w := newFakeWriter()
	b := NewProgressBuffer(w, time.Hour)

	for _, ev := range []AnswerEvent{
		answer("u1", "Lenses", "1"),
		answer("u2", "Cells", "9"),
		answer("u1", "Lenses", "2"),
		answer("u1", "Mirrors", "3"),
	} {
		if err := b.Enqueue(ev); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if b.Pending() != 3 {
		t.Fatalf("pending keys: want=3 got=%d", b.Pending())
	}

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	calls := w.snapshot()
	if len(calls) != 3 {
		t.Fatalf("writes: want=3 got=%d", len(calls))
	}
	if calls[0].key.Topic != "Lenses" || calls[1].key.UserID != "u2" || calls[2].key.Topic != "Mirrors" {
		t.Fatalf("write order: %+v", calls)
	}
	if len(calls[0].events) != 2 || calls[0].events[0].QuestionID != "1" || calls[0].events[1].QuestionID != "2" {
		t.Fatalf("events for first key out of order: %+v", calls[0].events)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending after flush: %d", b.Pending())
	}
}

func TestBufferRequeuesFailedKeysAheadOfNewerEvents(t *testing.T) {
	w := newFakeWriter()
	b := NewProgressBuffer(w, time.Hour)
	ctx := context.Background()

	first := answer("u1", "Lenses", "1")
	w.setFail(first.Key(), true)
	if err := b.Enqueue(first); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := b.Enqueue(answer("u2", "Cells", "5")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := b.Flush(ctx); err == nil {
		t.Fatalf("expected flush error")
	}
	if b.Pending() != 1 {
		t.Fatalf("failed key should stay pending, got=%d", b.Pending())
	}

	if err := b.Enqueue(answer("u1", "Lenses", "2")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	w.setFail(first.Key(), false)
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	calls := w.snapshot()
	last := calls[len(calls)-1]
	if last.key != first.Key() || len(last.events) != 2 || last.events[0].QuestionID != "1" || last.events[1].QuestionID != "2" {
		t.Fatalf("requeued events: %+v", last)
	}
}

func TestBufferFlushUserLeavesOthersPending(t *testing.T) {
	w := newFakeWriter()
	b := NewProgressBuffer(w, time.Hour)

	_ = b.Enqueue(answer("u1", "Lenses", "1"))
	_ = b.Enqueue(answer("u2", "Cells", "2"))

	if err := b.FlushUser(context.Background(), "u1"); err != nil {
		t.Fatalf("FlushUser: %v", err)
	}
	calls := w.snapshot()
	if len(calls) != 1 || calls[0].key.UserID != "u1" {
		t.Fatalf("FlushUser wrote: %+v", calls)
	}
	if b.Pending() != 1 {
		t.Fatalf("other users should stay pending, got=%d", b.Pending())
	}

	if err := b.FlushOnExit(context.Background()); err != nil {
		t.Fatalf("FlushOnExit: %v", err)
	}
	if b.Pending() != 0 || len(w.snapshot()) != 2 {
		t.Fatalf("FlushOnExit left work behind")
	}
}

func TestBufferFlushesAfterIdleDelay(t *testing.T) {
	w := newFakeWriter()
	b := NewProgressBuffer(w, 20*time.Millisecond)

	_ = b.Enqueue(answer("u1", "Lenses", "1"))
	_ = b.Enqueue(answer("u1", "Lenses", "2"))

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("idle flush never ran")
	}
	calls := w.snapshot()
	if len(calls) != 1 || len(calls[0].events) != 2 {
		t.Fatalf("idle flush should batch both events: %+v", calls)
	}
}

func TestBufferRetriesFailedKeysWithoutNewEvents(t *testing.T) {
	w := newFakeWriter()
	b := NewProgressBuffer(w, 20*time.Millisecond)

	ev := answer("u1", "Lenses", "1")
	w.setFail(ev.Key(), true)
	_ = b.Enqueue(ev)

	wait := func(what string) {
		t.Helper()
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never ran", what)
		}
	}
	wait("idle flush")
	w.setFail(ev.Key(), false)
	wait("retry flush")

	calls := w.snapshot()
	if len(calls) != 1 || calls[0].key != ev.Key() || len(calls[0].events) != 1 {
		t.Fatalf("retry should write the failed key: %+v", calls)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending after retry: %d", b.Pending())
	}
}

func TestBufferRetryDelayBacksOff(t *testing.T) {
	b := NewProgressBuffer(newFakeWriter(), time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range want {
		b.failures = i + 1
		if got := b.retryDelay(); got != d {
			t.Fatalf("failure %d: want=%s got=%s", i+1, d, got)
		}
	}
	b.failures = 50
	if got := b.retryDelay(); got != maxRetryDelay {
		t.Fatalf("backoff should cap at %s, got=%s", maxRetryDelay, got)
	}
}

func TestBufferDoesNotRetryAfterExit(t *testing.T) {
	w := newFakeWriter()
	b := NewProgressBuffer(w, 30*time.Millisecond)
	ev := answer("u1", "Lenses", "1")
	w.setFail(ev.Key(), true)
	_ = b.Enqueue(ev)

	if err := b.FlushOnExit(context.Background()); err == nil {
		t.Fatalf("expected exit flush error")
	}
	<-w.done
	select {
	case <-w.done:
		t.Fatalf("buffer kept retrying after exit")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBufferRejectsInvalidEvents(t *testing.T) {
	b := NewProgressBuffer(newFakeWriter(), time.Hour)
	if err := b.Enqueue(AnswerEvent{UserID: "u1", Area: "JEE"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if b.Pending() != 0 {
		t.Fatalf("invalid event was buffered")
	}
}
