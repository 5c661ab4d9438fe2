package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bilgisen/newswire/internal/utils"
	"github.com/google/uuid"
)

// MockRedisClient provides an in-process implementation for single-instance
// deployments and tests where Redis is not available.
type MockRedisClient struct {
	mu   sync.Mutex
	data map[string]mockEntry
	now  func() time.Time
}

type mockEntry struct {
	value     string
	expiresAt time.Time
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		data: make(map[string]mockEntry),
		now:  time.Now,
	}
}

func (m *MockRedisClient) Close() error {
	return nil
}

// get must be called with mu held.
func (m *MockRedisClient) get(key string) (string, bool) {
	e, ok := m.data[key]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return "", false
	}
	return e.value, true
}

func (m *MockRedisClient) set(key, value string, ttl time.Duration) {
	e := mockEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = e
}

func (m *MockRedisClient) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:" + name
	if _, held := m.get(key); held {
		return "", false, nil
	}
	token := uuid.NewString()
	m.set(key, token, ttl)
	return token, true, nil
}

func (m *MockRedisClient) ReleaseLock(ctx context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:" + name
	if current, held := m.get(key); held && current == token {
		delete(m.data, key)
	}
	return nil
}

func (m *MockRedisClient) Resolution(ctx context.Context, rawURL string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.get("resolved:" + utils.HashURL(rawURL))
	return v, ok, nil
}

func (m *MockRedisClient) StoreResolution(ctx context.Context, rawURL, resolved string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set("resolved:"+utils.HashURL(rawURL), resolved, ttl)
	return nil
}
