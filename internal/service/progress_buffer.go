package service

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/pkg/logger"
	"exam_tracker_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxRetryDelay = time.Minute

// ProgressWriter persists a batch of answers for one key.
type ProgressWriter interface {
	ApplyAnswers(ctx context.Context, key model.ProgressKey, events []AnswerEvent) (*model.ProgressRecord, error)
}

// ProgressBuffer batches answer events and writes them after the buffer has been
// idle for the flush delay, on demand, and at shutdown.
type ProgressBuffer struct {
	writer ProgressWriter
	delay  time.Duration

	mu      sync.Mutex
	pending map[model.ProgressKey][]AnswerEvent
	order   []model.ProgressKey
	timer   *time.Timer
	// consecutive flushes that left keys behind; drives the retry backoff
	failures int
	closed   bool

	// serializes flushes so a key is never written by two flushes at once
	flushMu sync.Mutex
}

func NewProgressBuffer(writer ProgressWriter, delay time.Duration) *ProgressBuffer {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &ProgressBuffer{
		writer:  writer,
		delay:   delay,
		pending: make(map[model.ProgressKey][]AnswerEvent),
	}
}

// Enqueue stores ev and re-arms the idle timer.
func (b *ProgressBuffer) Enqueue(ev AnswerEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}
	key := ev.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[key]; !ok {
		b.order = append(b.order, key)
	}
	b.pending[key] = append(b.pending[key], ev)
	monitoring.ProgressPending.Set(float64(len(b.order)))

	b.armLocked(b.delay)
	return nil
}

func (b *ProgressBuffer) armLocked(d time.Duration) {
	if b.timer == nil {
		b.timer = time.AfterFunc(d, b.onIdle)
	} else {
		b.timer.Reset(d)
	}
}

// retryDelay doubles the idle delay per consecutive failed flush, up to a minute.
func (b *ProgressBuffer) retryDelay() time.Duration {
	if b.delay >= maxRetryDelay {
		return b.delay
	}
	shift := b.failures - 1
	if shift > 6 {
		shift = 6
	}
	d := b.delay << uint(shift)
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

func (b *ProgressBuffer) onIdle() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		logger.Log.Warn("Background progress flush incomplete", zap.Error(err))
	}
}

// Pending is the number of keys waiting to be written.
func (b *ProgressBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Flush writes every pending key in enqueue order. Keys that fail are put back
// and the joined error is returned.
func (b *ProgressBuffer) Flush(ctx context.Context) error {
	return b.flush(ctx, func(model.ProgressKey) bool { return true })
}

// FlushUser writes only userID's pending keys.
func (b *ProgressBuffer) FlushUser(ctx context.Context, userID string) error {
	return b.flush(ctx, func(k model.ProgressKey) bool { return k.UserID == userID })
}

// FlushOnExit stops the idle timer and writes everything still pending.
func (b *ProgressBuffer) FlushOnExit(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	err := b.Flush(ctx)
	if err != nil {
		logger.Log.Error("Progress lost at shutdown", zap.Int("keys", b.Pending()), zap.Error(err))
	}
	return err
}

func (b *ProgressBuffer) flush(ctx context.Context, match func(model.ProgressKey) bool) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	keys, batches := b.take(match)
	if len(keys) == 0 {
		return nil
	}

	var errs []error
	for i, key := range keys {
		if _, err := b.writer.ApplyAnswers(ctx, key, batches[i]); err != nil {
			monitoring.ProgressFlushes.WithLabelValues("error").Inc()
			logger.Log.Warn("Progress flush failed, re-queued",
				zap.String("user", key.UserID),
				zap.String("area", key.Area),
				zap.String("topic", key.Topic),
				zap.Error(err))
			b.requeue(key, batches[i])
			errs = append(errs, err)
			continue
		}
		monitoring.ProgressFlushes.WithLabelValues("ok").Inc()
	}
	b.scheduleRetry(len(errs) > 0)
	return errors.Join(errs...)
}

// scheduleRetry re-arms the timer after a flush that left keys behind, so failed
// writes are retried even when no further answers arrive.
func (b *ProgressBuffer) scheduleRetry(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !failed {
		b.failures = 0
		return
	}
	b.failures++
	if b.closed {
		return
	}
	b.armLocked(b.retryDelay())
}

func (b *ProgressBuffer) take(match func(model.ProgressKey) bool) ([]model.ProgressKey, [][]AnswerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []model.ProgressKey
	var batches [][]AnswerEvent
	remaining := b.order[:0]
	for _, k := range b.order {
		if !match(k) {
			remaining = append(remaining, k)
			continue
		}
		keys = append(keys, k)
		batches = append(batches, b.pending[k])
		delete(b.pending, k)
	}
	b.order = remaining
	monitoring.ProgressPending.Set(float64(len(b.order)))
	return keys, batches
}

// requeue puts failed events back ahead of anything enqueued since the flush began.
func (b *ProgressBuffer) requeue(key model.ProgressKey, events []AnswerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if newer, ok := b.pending[key]; ok {
		b.pending[key] = append(events, newer...)
	} else {
		b.pending[key] = events
		b.order = append([]model.ProgressKey{key}, b.order...)
	}
	monitoring.ProgressPending.Set(float64(len(b.order)))
}
