package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store keeps encoded values for a fixed TTL. A value older than the TTL is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	data     []byte
	storedAt time.Time
}

// MemoryStore is a process-local Store. Expired entries are dropped lazily on read
// and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// WithClock replaces the time source; used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().Sub(e.storedAt) >= s.ttl {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.data, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.entries[key] = entry{data: value, storedAt: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, e := range s.entries {
		if now.Sub(e.storedAt) >= s.ttl {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. onSweep, when set,
// receives the number of entries each sweep removed.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(int)) {
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Key builds a cache key from a namespace and filter values. Values are trimmed and
// lower-cased so equivalent filters share an entry.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(strings.ToLower(strings.TrimSpace(p)))
	}
	return b.String()
}

// Loader reads JSON values through a Store and loads misses at most once per key
// at a time.
type Loader struct {
	store   Store
	group   singleflight.Group
	observe func(namespace string, hit bool)
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// OnLookup registers a hook called for every lookup; used for hit/miss metrics.
func (l *Loader) OnLookup(fn func(namespace string, hit bool)) {
	l.observe = fn
}

// Fetch fills dst from the cache, or calls load, stores its result and fills dst.
// Store errors degrade to a direct load.
func (l *Loader) Fetch(ctx context.Context, key string, dst interface{}, load func(ctx context.Context) (interface{}, error)) error {
	if data, ok, err := l.store.Get(ctx, key); err == nil && ok {
		if err := json.Unmarshal(data, dst); err == nil {
			l.lookup(key, true)
			return nil
		}
	}
	l.lookup(key, false)

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = l.store.Set(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dst)
}

func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

func (l *Loader) lookup(key string, hit bool) {
	if l.observe == nil {
		return
	}
	ns := key
	if i := strings.IndexByte(key, '|'); i >= 0 {
		ns = key[:i]
	}
	l.observe(ns, hit)
}
