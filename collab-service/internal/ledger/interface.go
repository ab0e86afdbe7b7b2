package ledger

import (
	"context"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
)

// AcceptResult is the outcome of a successful accept.
type AcceptResult struct {
	Bid      *domain.Bid    `json:"bid"`
	Target   *domain.Target `json:"target"`
	Rejected []*domain.Bid  `json:"rejected"`
}

// Ledger owns bid transitions and the points escrow tied to them.
type Ledger interface {
	CreateBid(ctx context.Context, actor domain.Actor, req *domain.CreateBidRequest) (*domain.Bid, error)
	// AcceptBid accepts one pending bid and rejects every other pending bid
	// on the same target in a single transaction.
	AcceptBid(ctx context.Context, actor domain.Actor, bidID int64) (*AcceptResult, error)
	RejectBid(ctx context.Context, actor domain.Actor, bidID int64) (*domain.Bid, error)
	// WithdrawBid refunds the escrowed points. RejectBid does not.
	WithdrawBid(ctx context.Context, actor domain.Actor, bidID int64) (*domain.Bid, error)
	DeleteBid(ctx context.Context, actor domain.Actor, bidID int64) error

	GetBid(ctx context.Context, bidID int64) (*domain.Bid, error)
	ListBidsForTarget(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID int64) ([]*domain.Bid, error)

	Balance(ctx context.Context, userID int64) (int64, error)
	GrantPoints(ctx context.Context, actor domain.Actor, req *domain.GrantPointsRequest) (int64, error)

	// OpenForBidding publishes a draft target and announces it to every
	// service provider.
	OpenForBidding(ctx context.Context, actor domain.Actor, targetType domain.TargetType, targetID int64) (*domain.Target, error)
}
