package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process AttemptLimiter and TokenDenylist used when Redis is not
// configured and by tests.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]memoryWindow
	denied  map[string]time.Time
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

// NewMemory returns an empty in-process store using now as its time source.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now, windows: map[string]memoryWindow{}, denied: map[string]time.Time{}}
}

func (m *Memory) Allow(_ context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := m.windows[key]
	if !w.expires.After(now) {
		w = memoryWindow{expires: now.Add(window)}
	}
	w.count++
	m.windows[key] = w
	return w.count <= limit, w.count, nil
}

func (m *Memory) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !w.expires.After(m.now()) {
		return 0, nil
	}
	return w.count, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}

func (m *Memory) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[tokenID] = until
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.denied[tokenID]
	return ok && until.After(m.now()), nil
}
