package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemorySessions = 10000

// MemoryStore keeps sessions in process. Sessions that have not been written
// to within the ttl, or that fall off the end of the LRU, are forgotten.
type MemoryStore struct {
	m    sync.Mutex
	data *expirable.LRU[string, map[string]string]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = defaultMemorySessions
	}
	return &MemoryStore{
		data: expirable.NewLRU[string, map[string]string](size, nil, ttl),
	}
}

func (ms *MemoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	values, ok := ms.data.Get(sessionID)
	if !ok {
		return "", ErrNotFound
	}
	value, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (ms *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	ms.m.Lock()
	defer ms.m.Unlock()
	values, ok := ms.data.Get(sessionID)
	if !ok {
		values = map[string]string{}
	}
	values[key] = value
	// Re-adding resets the expiry for the session
	ms.data.Add(sessionID, values)
	return nil
}

func (ms *MemoryStore) Clear(_ context.Context, sessionID string) error {
	ms.m.Lock()
	defer ms.m.Unlock()
	ms.data.Remove(sessionID)
	return nil
}

func (ms *MemoryStore) Len() int {
	return ms.data.Len()
}
