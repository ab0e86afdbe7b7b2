package gateway

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// GormGateway implements Gateway using GORM.
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway creates a new GORM-based gateway.
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// notFound converts gorm.ErrRecordNotFound into domain.ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}

func (g *GormGateway) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var model UserModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return model.ToDomain(), nil
}

func (g *GormGateway) ListUsersByRole(ctx context.Context, roles ...domain.Role) ([]*domain.User, error) {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	var models []UserModel
	if err := g.db.WithContext(ctx).Where("role IN ?", names).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = models[i].ToDomain()
	}
	return users, nil
}

func (g *GormGateway) GetUserPoints(ctx context.Context, id int64) (int64, error) {
	u, err := g.GetUser(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

func (g *GormGateway) UpdateUserPoints(ctx context.Context, id int64, delta int64) (int64, error) {
	db := g.db.WithContext(ctx)

	result := db.Model(&UserModel{}).
		Where("id = ? AND points + ? >= 0", id, delta).
		Update("points", gorm.Expr("points + ?", delta))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update points: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := g.GetUser(ctx, id); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("user %d: %w", id, domain.ErrInsufficientFunds)
	}

	return g.GetUserPoints(ctx, id)
}

func (g *GormGateway) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := g.db.WithContext(ctx).Create(messageToModel(msg)).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (g *GormGateway) CreateNotification(ctx context.Context, n *domain.Notification) error {
	model := notificationToModel(n)
	model.ID = 0
	if err := g.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.ID = model.ID
	n.CreatedAt = model.CreatedAt
	return nil
}

func (g *GormGateway) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	var model NotificationModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "notification", id)
	}
	return model.ToDomain(), nil
}

func (g *GormGateway) MarkNotificationAsRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	var model NotificationModel
	err := g.db.WithContext(ctx).First(&model, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, notFound(err, "notification", id)
	}

	if !model.IsRead {
		if err := g.db.WithContext(ctx).Model(&NotificationModel{}).
			Where("id = ?", id).
			Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("failed to mark notification read: %w", err)
		}
		model.IsRead = true
	}
	return model.ToDomain(), nil
}

func (g *GormGateway) MarkAllNotificationsAsRead(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&NotificationModel{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Order("id").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&NotificationModel{}).Where("id IN ?", ids).Update("is_read", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return ids, nil
}

func (g *GormGateway) MarkNotificationsAsRead(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	var owned []int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&NotificationModel{}).
			Where("user_id = ? AND id IN ?", userID, ids).
			Order("id").
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}
		return tx.Model(&NotificationModel{}).Where("id IN ?", owned).Update("is_read", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	if owned == nil {
		owned = []int64{}
	}
	return owned, nil
}

func (g *GormGateway) GetUnreadNotificationsByUserID(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	var models []NotificationModel
	if err := g.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	return toNotifications(models), nil
}

func (g *GormGateway) ListNotificationsByUserID(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	q := g.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []NotificationModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return toNotifications(models), nil
}

func toNotifications(models []NotificationModel) []*domain.Notification {
	out := make([]*domain.Notification, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out
}

func (g *GormGateway) DeleteNotification(ctx context.Context, userID, id int64) error {
	result := g.db.WithContext(ctx).Delete(&NotificationModel{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (g *GormGateway) CreateBid(ctx context.Context, bid *domain.Bid) error {
	model := bidToModel(bid)
	model.ID = 0
	if err := g.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}

	bid.ID = model.ID
	bid.CreatedAt = model.CreatedAt
	bid.UpdatedAt = model.UpdatedAt
	return nil
}

func (g *GormGateway) GetBid(ctx context.Context, id int64) (*domain.Bid, error) {
	var model BidModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "bid", id)
	}
	return model.ToDomain(), nil
}

func (g *GormGateway) UpdateBid(ctx context.Context, id int64, patch domain.BidPatch) (*domain.Bid, error) {
	result := g.db.WithContext(ctx).Model(&BidModel{}).
		Where("id = ? AND status = ?", id, string(patch.Expect)).
		Update("status", string(patch.Status))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update bid: %w", result.Error)
	}

	bid, err := g.GetBid(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("bid %d is %s: %w", id, bid.Status, domain.ErrInvalidState)
	}
	return bid, nil
}

func (g *GormGateway) DeleteBid(ctx context.Context, id int64) error {
	result := g.db.WithContext(ctx).Delete(&BidModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete bid: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bid %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (g *GormGateway) GetBidsByTarget(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.Bid, error) {
	var models []BidModel
	if err := g.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", string(targetType), targetID).
		Order("id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return toBids(models), nil
}

func (g *GormGateway) GetBidsByBidder(ctx context.Context, bidderID int64) ([]*domain.Bid, error) {
	var models []BidModel
	if err := g.db.WithContext(ctx).
		Where("bidder_id = ?", bidderID).
		Order("id DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return toBids(models), nil
}

func toBids(models []BidModel) []*domain.Bid {
	out := make([]*domain.Bid, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out
}

func (g *GormGateway) GetServiceRequest(ctx context.Context, id int64) (*domain.Target, error) {
	var model ServiceRequestModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "service request", id)
	}
	return model.ToDomain(), nil
}

func (g *GormGateway) GetProject(ctx context.Context, id int64) (*domain.Target, error) {
	var model ProjectModel
	if err := g.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	return model.ToDomain(), nil
}

func (g *GormGateway) UpdateServiceRequest(ctx context.Context, id int64, patch domain.TargetPatch) error {
	return g.updateTarget(ctx, &ServiceRequestModel{}, "service request", id, patch)
}

func (g *GormGateway) UpdateProject(ctx context.Context, id int64, patch domain.TargetPatch) error {
	return g.updateTarget(ctx, &ProjectModel{}, "project", id, patch)
}

func (g *GormGateway) updateTarget(ctx context.Context, model interface{}, what string, id int64, patch domain.TargetPatch) error {
	updates := map[string]interface{}{"status": string(patch.Status)}
	if patch.AssigneeID != nil {
		updates["assignee_id"] = *patch.AssigneeID
	}

	result := g.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", what, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func (g *GormGateway) AddTeamMember(ctx context.Context, m *domain.TeamMember) error {
	model := &TeamMemberModel{
		TargetType: string(m.TargetType),
		TargetID:   m.TargetID,
		UserID:     m.UserID,
		Role:       m.Role,
	}
	err := g.db.WithContext(ctx).
		Where(TeamMemberModel{TargetType: model.TargetType, TargetID: model.TargetID, UserID: model.UserID}).
		Assign(TeamMemberModel{Role: model.Role}).
		FirstOrCreate(model).Error
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

func (g *GormGateway) ListTeamMembers(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.TeamMember, error) {
	var models []TeamMemberModel
	if err := g.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", string(targetType), targetID).
		Order("user_id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	out := make([]*domain.TeamMember, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, nil
}

func (g *GormGateway) WithinTx(ctx context.Context, fn func(tx Gateway) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormGateway{db: tx})
	})
}
