package gateway

import (
	"time"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// UserModel is the GORM model for users table.
type UserModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Username    string `gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string `gorm:"type:varchar(100)"`
	Role        string `gorm:"type:varchar(20);index;not null"`
	Points      int64  `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:          m.ID,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		Role:        domain.Role(m.Role),
		Points:      m.Points,
	}
}

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false"`
	SenderID     int64  `gorm:"index;not null"`
	SenderName   string `gorm:"type:varchar(100)"`
	ReceiverID   int64  `gorm:"index;not null"`
	ReceiverName string `gorm:"type:varchar(100)"`
	Content      string `gorm:"type:text;not null"`
	ProjectID    *int64 `gorm:"index"`
	ProjectName  string `gorm:"type:varchar(255)"`
	CreatedAt    time.Time
}

func (MessageModel) TableName() string { return "messages" }

func messageToModel(m *domain.ChatMessage) *MessageModel {
	return &MessageModel{
		ID:           m.ID,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		ReceiverID:   m.ReceiverID,
		ReceiverName: m.ReceiverName,
		Content:      m.Content,
		ProjectID:    m.ProjectID,
		ProjectName:  m.ProjectName,
		CreatedAt:    m.Timestamp,
	}
}

// NotificationModel is the GORM model for notifications table.
type NotificationModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"index:idx_notifications_user_read;not null"`
	Title       string `gorm:"type:varchar(255);not null"`
	Message     string `gorm:"type:text"`
	Category    string `gorm:"type:varchar(20)"`
	Priority    string `gorm:"type:varchar(10)"`
	RelatedID   *int64
	RelatedType string `gorm:"type:varchar(50)"`
	ActionURL   string `gorm:"type:varchar(255)"`
	IsRead      bool   `gorm:"index:idx_notifications_user_read;not null;default:false"`
	CreatedAt   time.Time
}

func (NotificationModel) TableName() string { return "notifications" }

func (m *NotificationModel) ToDomain() *domain.Notification {
	return &domain.Notification{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Message:     m.Message,
		Category:    domain.Category(m.Category),
		Priority:    domain.Priority(m.Priority),
		RelatedID:   m.RelatedID,
		RelatedType: m.RelatedType,
		ActionURL:   m.ActionURL,
		Read:        m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

func notificationToModel(n *domain.Notification) *NotificationModel {
	return &NotificationModel{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Message:     n.Message,
		Category:    string(n.Category),
		Priority:    string(n.Priority),
		RelatedID:   n.RelatedID,
		RelatedType: n.RelatedType,
		ActionURL:   n.ActionURL,
		IsRead:      n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

// BidModel is the GORM model for bids table.
type BidModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	TargetType  string  `gorm:"type:varchar(20);index:idx_bids_target;not null"`
	TargetID    int64   `gorm:"index:idx_bids_target;not null"`
	BidderID    int64   `gorm:"index;not null"`
	Amount      float64 `gorm:"not null"`
	PointsToUse int64   `gorm:"not null;default:0"`
	Proposal    string  `gorm:"type:text"`
	Timeframe   string  `gorm:"type:varchar(100)"`
	Status      string  `gorm:"type:varchar(20);index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (BidModel) TableName() string { return "bids" }

func (m *BidModel) ToDomain() *domain.Bid {
	return &domain.Bid{
		ID:          m.ID,
		TargetType:  domain.TargetType(m.TargetType),
		TargetID:    m.TargetID,
		BidderID:    m.BidderID,
		Amount:      m.Amount,
		PointsToUse: m.PointsToUse,
		Proposal:    m.Proposal,
		Timeframe:   m.Timeframe,
		Status:      domain.BidStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func bidToModel(b *domain.Bid) *BidModel {
	return &BidModel{
		ID:          b.ID,
		TargetType:  string(b.TargetType),
		TargetID:    b.TargetID,
		BidderID:    b.BidderID,
		Amount:      b.Amount,
		PointsToUse: b.PointsToUse,
		Proposal:    b.Proposal,
		Timeframe:   b.Timeframe,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// ServiceRequestModel is the GORM model for service_requests table.
type ServiceRequestModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ClientID   int64  `gorm:"index;not null"`
	Title      string `gorm:"type:varchar(255);not null"`
	Status     string `gorm:"type:varchar(20);index;not null"`
	AssigneeID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ServiceRequestModel) TableName() string { return "service_requests" }

func (m *ServiceRequestModel) ToDomain() *domain.Target {
	return &domain.Target{
		ID:         m.ID,
		Type:       domain.TargetServiceRequest,
		OwnerID:    m.ClientID,
		Title:      m.Title,
		Status:     domain.TargetStatus(m.Status),
		AssigneeID: m.AssigneeID,
	}
}

// ProjectModel is the GORM model for projects table.
type ProjectModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ClientID   int64  `gorm:"index;not null"`
	Title      string `gorm:"type:varchar(255);not null"`
	Status     string `gorm:"type:varchar(20);index;not null"`
	AssigneeID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ProjectModel) TableName() string { return "projects" }

func (m *ProjectModel) ToDomain() *domain.Target {
	return &domain.Target{
		ID:         m.ID,
		Type:       domain.TargetProject,
		OwnerID:    m.ClientID,
		Title:      m.Title,
		Status:     domain.TargetStatus(m.Status),
		AssigneeID: m.AssigneeID,
	}
}

// TeamMemberModel is the GORM model for team_members table.
type TeamMemberModel struct {
	TargetType string `gorm:"type:varchar(20);primaryKey"`
	TargetID   int64  `gorm:"primaryKey"`
	UserID     int64  `gorm:"primaryKey"`
	Role       string `gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time
}

func (TeamMemberModel) TableName() string { return "team_members" }

func (m *TeamMemberModel) ToDomain() *domain.TeamMember {
	return &domain.TeamMember{
		TargetType: domain.TargetType(m.TargetType),
		TargetID:   m.TargetID,
		UserID:     m.UserID,
		Role:       m.Role,
	}
}

// Models lists every table owned by the gateway, for migrations.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&MessageModel{},
		&NotificationModel{},
		&BidModel{},
		&ServiceRequestModel{},
		&ProjectModel{},
		&TeamMemberModel{},
	}
}
