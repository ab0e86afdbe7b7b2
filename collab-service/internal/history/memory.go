package history

import (
	"context"
	"sync"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// MemoryBuffer is a fixed-size ring of messages.
type MemoryBuffer struct {
	mu    sync.RWMutex
	items []*domain.ChatMessage
	head  int // index of the oldest entry
	size  int
}

func NewMemoryBuffer(capacity int) *MemoryBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryBuffer{items: make([]*domain.ChatMessage, capacity)}
}

func (b *MemoryBuffer) Append(ctx context.Context, msg *domain.ChatMessage) error {
	cp := *msg

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = &cp
		b.size++
		return nil
	}
	b.items[b.head] = &cp
	b.head = (b.head + 1) % capacity
	return nil
}

func (b *MemoryBuffer) ForUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*domain.ChatMessage
	capacity := len(b.items)
	for i := 0; i < b.size; i++ {
		m := b.items[(b.head+i)%capacity]
		if m.Involves(userID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (b *MemoryBuffer) Len(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size, nil
}

func (b *MemoryBuffer) Close() error {
	return nil
}
