package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/hot-product/internal/adapter/storage"
	"github.com/rl1809/hot-product/internal/core/domain"
)

// countingStore counts product reads and can slow them down to widen races.
type countingStore struct {
	*storage.MemoryStore
	reads atomic.Int32
	delay time.Duration
}

func newCountingStore(delay time.Duration) *countingStore {
	return &countingStore{MemoryStore: storage.NewMemoryStore(), delay: delay}
}

func (s *countingStore) FindProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	s.reads.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.MemoryStore.FindProductByID(ctx, id)
}

// ctxStore fails reads on a done context the way database/sql does.
type ctxStore struct {
	*countingStore
}

func (s ctxStore) FindProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.countingStore.FindProductByID(ctx, id)
}

var errCacheDown = errors.New("cache down")

// failingCache rejects every operation.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}

func (failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errCacheDown
}

func (failingCache) Delete(ctx context.Context, key string) error { return errCacheDown }

func (failingCache) TryLock(ctx context.Context, name string, wait, hold time.Duration) (string, bool, error) {
	return "", false, errCacheDown
}

func (failingCache) Unlock(ctx context.Context, name, token string) error { return errCacheDown }

// busyLockCache behaves like a healthy cache whose lock is always held elsewhere.
type busyLockCache struct {
	*storage.MemoryCache
}

func (busyLockCache) TryLock(ctx context.Context, name string, wait, hold time.Duration) (string, bool, error) {
	return "", false, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}
