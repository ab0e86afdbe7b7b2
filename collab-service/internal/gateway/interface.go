package gateway

import (
	"context"
	"fmt"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// Gateway is the durable store behind the collab service. Lookups of absent
// rows return an error wrapping domain.ErrNotFound.
type Gateway interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsersByRole(ctx context.Context, roles ...domain.Role) ([]*domain.User, error)
	GetUserPoints(ctx context.Context, id int64) (int64, error)
	// UpdateUserPoints adds delta to the balance if the result stays >= 0 and
	// returns the new balance. Otherwise it fails with ErrInsufficientFunds.
	UpdateUserPoints(ctx context.Context, id int64, delta int64) (int64, error)

	CreateMessage(ctx context.Context, msg *domain.ChatMessage) error

	CreateNotification(ctx context.Context, n *domain.Notification) error
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)
	// MarkNotificationAsRead fails with ErrNotFound when id is absent or not
	// owned by userID. Marking a read notification again is a no-op.
	MarkNotificationAsRead(ctx context.Context, userID, id int64) (*domain.Notification, error)
	// MarkAllNotificationsAsRead returns the ids that were unread.
	MarkAllNotificationsAsRead(ctx context.Context, userID int64) ([]int64, error)
	// MarkNotificationsAsRead returns the subset of ids owned by userID.
	MarkNotificationsAsRead(ctx context.Context, userID int64, ids []int64) ([]int64, error)
	// GetUnreadNotificationsByUserID returns unread notifications, oldest first.
	GetUnreadNotificationsByUserID(ctx context.Context, userID int64) ([]*domain.Notification, error)
	// ListNotificationsByUserID returns up to limit notifications, newest first.
	ListNotificationsByUserID(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error)
	DeleteNotification(ctx context.Context, userID, id int64) error

	CreateBid(ctx context.Context, bid *domain.Bid) error
	GetBid(ctx context.Context, id int64) (*domain.Bid, error)
	// UpdateBid applies patch only while the bid is in patch.Expect; a bid in
	// any other status fails with ErrInvalidState.
	UpdateBid(ctx context.Context, id int64, patch domain.BidPatch) (*domain.Bid, error)
	DeleteBid(ctx context.Context, id int64) error
	GetBidsByTarget(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID int64) ([]*domain.Bid, error)

	GetServiceRequest(ctx context.Context, id int64) (*domain.Target, error)
	GetProject(ctx context.Context, id int64) (*domain.Target, error)
	UpdateServiceRequest(ctx context.Context, id int64, patch domain.TargetPatch) error
	UpdateProject(ctx context.Context, id int64, patch domain.TargetPatch) error

	AddTeamMember(ctx context.Context, m *domain.TeamMember) error
	ListTeamMembers(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.TeamMember, error)

	// WithinTx runs fn against a transactional view. If fn returns an error
	// or ctx ends, none of its writes are kept.
	WithinTx(ctx context.Context, fn func(tx Gateway) error) error
}

// GetTarget loads a service request or project.
func GetTarget(ctx context.Context, g Gateway, targetType domain.TargetType, id int64) (*domain.Target, error) {
	switch targetType {
	case domain.TargetServiceRequest:
		return g.GetServiceRequest(ctx, id)
	case domain.TargetProject:
		return g.GetProject(ctx, id)
	}
	return nil, fmt.Errorf("%w: unknown target type %q", domain.ErrValidation, targetType)
}

// UpdateTarget patches a service request or project.
func UpdateTarget(ctx context.Context, g Gateway, targetType domain.TargetType, id int64, patch domain.TargetPatch) error {
	switch targetType {
	case domain.TargetServiceRequest:
		return g.UpdateServiceRequest(ctx, id, patch)
	case domain.TargetProject:
		return g.UpdateProject(ctx, id, patch)
	}
	return fmt.Errorf("%w: unknown target type %q", domain.ErrValidation, targetType)
}
