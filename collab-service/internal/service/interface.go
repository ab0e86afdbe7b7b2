package service

import (
	"context"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/pkg/jwt"
)

// Pusher delivers a frame to a connected user. It reports false when the
// user is offline or the frame could not be queued.
type Pusher interface {
	SendTo(userID int64, message interface{}) bool
}

// TokenValidator checks the optional token carried by the auth frame.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// FanOutResult counts the outcome of a FanOut call.
type FanOutResult struct {
	Persisted int
	Pushed    int
	Failed    int
}

type NotificationService interface {
	// Dispatch persists n unread and then tries to push it.
	Dispatch(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	// FanOut dispatches build(id) to every recipient independently.
	FanOut(ctx context.Context, recipients []int64, build func(userID int64) *domain.Notification) FanOutResult
	// Get returns one notification owned by userID.
	Get(ctx context.Context, userID, id int64) (*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) ([]int64, error)
	MarkManyRead(ctx context.Context, userID int64, ids []int64) ([]int64, error)
	Delete(ctx context.Context, userID, id int64) error
	ListUnread(ctx context.Context, userID int64) ([]*domain.Notification, error)
	List(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error)
}

type ChatService interface {
	HandleAuth(ctx context.Context, client *hub.Client, frame *domain.AuthFrame) error
	HandleChatMessage(ctx context.Context, client *hub.Client, frame *domain.MessageFrame) error
	HandleMarkRead(ctx context.Context, client *hub.Client, frame *domain.MarkReadFrame) error
	HandleDisconnect(ctx context.Context, client *hub.Client)
	// Relay validates, stores and delivers one message from sender.
	Relay(ctx context.Context, sender domain.Actor, frame *domain.MessageFrame) (*domain.ChatMessage, error)
	Start(ctx context.Context) error
	Stop() error
}
