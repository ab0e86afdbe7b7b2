package domain

import "time"

type Category string

const (
	CategoryMessage Category = "message"
	CategoryBid     Category = "bid"
	CategoryRequest Category = "request"
	CategoryProject Category = "project"
	CategoryPoints  Category = "points"
	CategorySystem  Category = "system"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a durable per-user notice. Read is the only mutable field.
type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	RelatedID   *int64    `json:"relatedId,omitempty"`
	RelatedType string    `json:"relatedType,omitempty"`
	ActionURL   string    `json:"actionUrl,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Clone returns a copy detached from n.
func (n *Notification) Clone() *Notification {
	c := *n
	if n.RelatedID != nil {
		id := *n.RelatedID
		c.RelatedID = &id
	}
	return &c
}
