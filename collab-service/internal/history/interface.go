package history

import (
	"context"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// DefaultCapacity is the number of messages kept before the oldest is evicted.
const DefaultCapacity = 1000

// Buffer is the bounded store of recent chat messages replayed on connect.
type Buffer interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	// ForUser returns messages sent or received by userID, oldest first.
	ForUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error)
	Len(ctx context.Context) (int, error)
	Close() error
}
