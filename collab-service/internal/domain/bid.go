package domain

import "time"

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

// Terminal reports whether no further transition is allowed.
func (s BidStatus) Terminal() bool {
	return s != BidPending
}

type Bid struct {
	ID          int64      `json:"id"`
	TargetType  TargetType `json:"targetType"`
	TargetID    int64      `json:"targetId"`
	BidderID    int64      `json:"bidderId"`
	Amount      float64    `json:"amount"`
	PointsToUse int64      `json:"pointsToUse"`
	Proposal    string     `json:"proposal,omitempty"`
	Timeframe   string     `json:"timeframe,omitempty"`
	Status      BidStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// BidPatch moves a bid to Status only if it is still in Expect.
type BidPatch struct {
	Status BidStatus
	Expect BidStatus
}

// CreateBidRequest is the submit-bid payload.
type CreateBidRequest struct {
	TargetType  string  `json:"targetType" binding:"required"`
	TargetID    int64   `json:"targetId" binding:"required"`
	Amount      float64 `json:"amount"`
	PointsToUse int64   `json:"pointsToUse"`
	Proposal    string  `json:"proposal"`
	Timeframe   string  `json:"timeframe"`
}

// GrantPointsRequest credits points to a user.
type GrantPointsRequest struct {
	UserID int64  `json:"userId" binding:"required"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// MarkReadRequest marks a set of notifications read.
type MarkReadRequest struct {
	NotificationIDs []int64 `json:"notificationIds"`
}
