package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend coordinates goroutines of a single process.
// Locks expire after their TTL like the Redis backend.
type MemoryBackend struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewMemoryBackend creates an in-process lock backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		locks: make(map[string]memoryEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire implements Backend.
func (b *MemoryBackend) Acquire(ctx context.Context, resource string, ttl time.Duration) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if e, ok := b.locks[resource]; ok && e.expires.After(now) {
		return nil, ErrNotAcquired
	}

	token := uuid.NewString()
	b.locks[resource] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryHandle{backend: b, resource: resource, token: token}, nil
}

// Held reports whether resource is currently locked.
func (b *MemoryBackend) Held(resource string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.locks[resource]
	return ok && e.expires.After(b.now())
}

// Expiry returns when the current lock on resource expires.
func (b *MemoryBackend) Expiry(resource string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.locks[resource]
	return e.expires, ok
}

type memoryHandle struct {
	backend  *MemoryBackend
	resource string
	token    string
}

func (h *memoryHandle) Resource() string {
	return h.resource
}

func (h *memoryHandle) Extend(ctx context.Context, ttl time.Duration) error {
	b := h.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	e, ok := b.locks[h.resource]
	if !ok || e.token != h.token || !e.expires.After(now) {
		return ErrNotHeld
	}
	e.expires = now.Add(ttl)
	b.locks[h.resource] = e
	return nil
}

func (h *memoryHandle) Release(ctx context.Context) error {
	b := h.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.locks[h.resource]
	if !ok || e.token != h.token {
		return ErrNotHeld
	}
	delete(b.locks, h.resource)
	return nil
}
