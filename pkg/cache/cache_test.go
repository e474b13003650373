package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLoader(ttl time.Duration) (*Loader, *MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(ttl).WithClock(clock.Now)
	return NewLoader(store), store, clock
}

func TestFetchWithinTTLReturnsStoredValue(t *testing.T) {
	loader, _, clock := newTestLoader(5 * time.Minute)
	ctx := context.Background()

	var loads int32
	load := func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt32(&loads, 1)
		return []int{int(n), 2, 3}, nil
	}

	var first []int
	if err := loader.Fetch(ctx, "questions|a", &first, load); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	clock.Advance(4*time.Minute + 59*time.Second)

	var second []int
	if err := loader.Fetch(ctx, "questions|a", &second, load); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if loads != 1 {
		t.Fatalf("loads: want=1 got=%d", loads)
	}
	if len(second) != 3 || second[0] != first[0] {
		t.Fatalf("cached value changed: first=%v second=%v", first, second)
	}
}

func TestFetchAfterTTLReloadsExactlyOnce(t *testing.T) {
	loader, _, clock := newTestLoader(5 * time.Minute)
	ctx := context.Background()

	var loads int32
	load := func(ctx context.Context) (interface{}, error) {
		return int(atomic.AddInt32(&loads, 1)), nil
	}

	var v int
	if err := loader.Fetch(ctx, "k", &v, load); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	clock.Advance(5 * time.Minute)

	for i := 0; i < 3; i++ {
		if err := loader.Fetch(ctx, "k", &v, load); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if loads != 2 {
		t.Fatalf("loads: want=2 got=%d", loads)
	}
	if v != 2 {
		t.Fatalf("value: want=2 got=%d", v)
	}
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	loader, _, _ := newTestLoader(time.Minute)
	ctx := context.Background()

	var loads int32
	release := make(chan struct{})
	load := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var s string
			if err := loader.Fetch(ctx, "same", &s, load); err != nil {
				t.Errorf("fetch: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got < 1 || got > 2 {
		t.Fatalf("loads: want 1 (2 at most if a goroutine lost the race) got=%d", got)
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	loader, store, _ := newTestLoader(time.Minute)
	ctx := context.Background()

	boom := errors.New("boom")
	var v int
	err := loader.Fetch(ctx, "k", &v, func(ctx context.Context) (interface{}, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got=%v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("error result was cached")
	}
}

func TestKeyNormalizes(t *testing.T) {
	a := Key("questions", " GATE-CSE ", "Parsing", "EASY", "1")
	b := Key("questions", "gate-cse", "parsing", "easy", "1")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}

func TestSweepDropsExpired(t *testing.T) {
	_, store, clock := newTestLoader(time.Minute)
	ctx := context.Background()
	_ = store.Set(ctx, "old", []byte("1"))
	clock.Advance(2 * time.Minute)
	_ = store.Set(ctx, "new", []byte("2"))

	if n := store.Sweep(); n != 1 {
		t.Fatalf("sweep: want=1 got=%d", n)
	}
	if _, ok, _ := store.Get(ctx, "new"); !ok {
		t.Fatalf("fresh entry was swept")
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	loader, _, _ := newTestLoader(time.Minute)
	ctx := context.Background()

	var loads int32
	load := func(ctx context.Context) (interface{}, error) {
		return int(atomic.AddInt32(&loads, 1)), nil
	}

	var v int
	_ = loader.Fetch(ctx, "k", &v, load)
	if err := loader.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_ = loader.Fetch(ctx, "k", &v, load)
	if v != 2 {
		t.Fatalf("value after invalidate: want=2 got=%d", v)
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	_, store, clock := newTestLoader(time.Minute)
	_ = store.Set(context.Background(), "old", []byte("1"))
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	stopped := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond, func(n int) { swept <- n })
		close(stopped)
	}()

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("first sweep: want=1 got=%d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper never ran")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper kept running after cancel")
	}
}
