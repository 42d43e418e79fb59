// Package cache holds the stores the feed keeps its first pages in.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	val     []byte
	expires time.Time
}

// Memory is an in-process cache bounded by entry count. Every entry also
// carries its own expiry.
type Memory struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

func NewMemory(size int, now func() time.Time) (*Memory, error) {
	if now == nil {
		now = time.Now
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("error creating lru: %w", err)
	}

	return &Memory{entries: entries, now: now}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		m.entries.Remove(key)
		return nil, false, nil
	}

	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.entries.Add(key, entry{val: val, expires: m.now().Add(ttl)})
	return nil
}
