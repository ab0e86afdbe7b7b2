package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weiawesome/artisans-live/collab-service/internal/audit"
	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/events"
	"github.com/weiawesome/artisans-live/collab-service/internal/gateway"
	"github.com/weiawesome/artisans-live/collab-service/internal/service"
	"github.com/weiawesome/artisans-live/pkg/log"
)

const relatedBid = "bid"

type ledgerImpl struct {
	gw           gateway.Gateway
	notifier     service.NotificationService
	publisher    events.Publisher
	locks        *keyedLocks
	writeTimeout time.Duration
}

// NewLedger creates a bid ledger. publisher may be nil.
func NewLedger(gw gateway.Gateway, notifier service.NotificationService, publisher events.Publisher, cfg config.LedgerConfig) Ledger {
	l := &ledgerImpl{
		gw:           gw,
		notifier:     notifier,
		publisher:    publisher,
		locks:        newKeyedLocks(),
		writeTimeout: cfg.WriteTimeout,
	}
	if l.publisher == nil {
		l.publisher = events.Discard{}
	}
	if l.writeTimeout <= 0 {
		l.writeTimeout = 5 * time.Second
	}
	return l
}

// lockTarget serialises every read and write that concerns one target.
func (l *ledgerImpl) lockTarget(ctx context.Context, targetType domain.TargetType, targetID int64) (func(), error) {
	unlock, err := l.locks.Acquire(ctx, targetType.Key(targetID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", targetType.Key(targetID), err)
	}
	return unlock, nil
}

// commit runs fn in one gateway transaction bounded by the write timeout.
func (l *ledgerImpl) commit(ctx context.Context, fn func(ctx context.Context, tx gateway.Gateway) error) error {
	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()
	return l.gw.WithinTx(ctx, func(tx gateway.Gateway) error {
		return fn(ctx, tx)
	})
}

func canManage(actor domain.Actor, target *domain.Target) bool {
	return actor.IsAdmin() || target.OwnerID == actor.ID
}

func (l *ledgerImpl) CreateBid(ctx context.Context, actor domain.Actor, req *domain.CreateBidRequest) (*domain.Bid, error) {
	targetType, err := domain.ParseTargetType(req.TargetType)
	if err != nil {
		return nil, err
	}
	if req.TargetID <= 0 {
		return nil, fmt.Errorf("%w: targetId is required", domain.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if req.PointsToUse < 0 {
		return nil, fmt.Errorf("%w: pointsToUse must not be negative", domain.ErrValidation)
	}
	if !actor.Role.IsProvider() {
		return nil, fmt.Errorf("%w: only service providers can bid", domain.ErrForbidden)
	}

	unlock, err := l.lockTarget(ctx, targetType, req.TargetID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	target, err := gateway.GetTarget(ctx, l.gw, targetType, req.TargetID)
	if err != nil {
		return nil, err
	}
	if !target.OpenForBidding() {
		return nil, fmt.Errorf("%s %d is %s: %w", targetType.Label(), target.ID, target.Status, domain.ErrNotOpenForBidding)
	}

	existing, err := l.gw.GetBidsByTarget(ctx, targetType, target.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.BidderID == actor.ID && !b.Status.Terminal() {
			return nil, fmt.Errorf("bid %d: %w", b.ID, domain.ErrDuplicateBid)
		}
	}

	bid := &domain.Bid{
		TargetType:  targetType,
		TargetID:    target.ID,
		BidderID:    actor.ID,
		Amount:      req.Amount,
		PointsToUse: req.PointsToUse,
		Proposal:    strings.TrimSpace(req.Proposal),
		Timeframe:   strings.TrimSpace(req.Timeframe),
		Status:      domain.BidPending,
	}
	err = l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		if bid.PointsToUse > 0 {
			if _, err := tx.UpdateUserPoints(ctx, actor.ID, -bid.PointsToUse); err != nil {
				return err
			}
		}
		return tx.CreateBid(ctx, bid)
	})
	if err != nil {
		return nil, err
	}
	unlock()

	l.notifyNewBid(ctx, actor, target, bid)
	l.publish(ctx, events.TypeBidCreated, bid, actor.ID)
	audit.LogWithDetail(ctx, audit.ActionBidCreate, actor.ID, bidDetail(bid), "bid created")

	return bid, nil
}

// loadForTransition reads the bid and its target while the target lock is
// held. The bid is read again under the lock so the caller sees its current
// status.
func (l *ledgerImpl) loadForTransition(ctx context.Context, bidID int64) (*domain.Bid, *domain.Target, func(), error) {
	if bidID <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: bid id is required", domain.ErrValidation)
	}
	peek, err := l.gw.GetBid(ctx, bidID)
	if err != nil {
		return nil, nil, nil, err
	}

	unlock, err := l.lockTarget(ctx, peek.TargetType, peek.TargetID)
	if err != nil {
		return nil, nil, nil, err
	}

	bid, err := l.gw.GetBid(ctx, bidID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	target, err := gateway.GetTarget(ctx, l.gw, bid.TargetType, bid.TargetID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return bid, target, unlock, nil
}

func pendingOnly(bid *domain.Bid) error {
	if bid.Status != domain.BidPending {
		return fmt.Errorf("bid %d is %s: %w", bid.ID, bid.Status, domain.ErrInvalidState)
	}
	return nil
}

func (l *ledgerImpl) AcceptBid(ctx context.Context, actor domain.Actor, bidID int64) (*AcceptResult, error) {
	bid, target, unlock, err := l.loadForTransition(ctx, bidID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !canManage(actor, target) {
		return nil, fmt.Errorf("%w: only the owner or an administrator can accept bids", domain.ErrForbidden)
	}
	if err := pendingOnly(bid); err != nil {
		return nil, err
	}
	if !target.OpenForBidding() {
		return nil, fmt.Errorf("%s %d is %s: %w", target.Type.Label(), target.ID, target.Status, domain.ErrInvalidState)
	}

	all, err := l.gw.GetBidsByTarget(ctx, target.Type, target.ID)
	if err != nil {
		return nil, err
	}
	var siblings []*domain.Bid
	for _, b := range all {
		if b.ID != bid.ID && b.Status == domain.BidPending {
			siblings = append(siblings, b)
		}
	}

	var (
		accepted *domain.Bid
		rejected = make([]*domain.Bid, 0, len(siblings))
		assignee = bid.BidderID
	)
	err = l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		var err error
		accepted, err = tx.UpdateBid(ctx, bid.ID, domain.BidPatch{Status: domain.BidAccepted, Expect: domain.BidPending})
		if err != nil {
			return err
		}
		patch := domain.TargetPatch{Status: target.Type.AwardedStatus(), AssigneeID: &assignee}
		if err := gateway.UpdateTarget(ctx, tx, target.Type, target.ID, patch); err != nil {
			return err
		}
		if err := tx.AddTeamMember(ctx, &domain.TeamMember{
			TargetType: target.Type,
			TargetID:   target.ID,
			UserID:     assignee,
			Role:       domain.TeamRoleAssignee,
		}); err != nil {
			return err
		}
		for _, s := range siblings {
			r, err := tx.UpdateBid(ctx, s.ID, domain.BidPatch{Status: domain.BidRejected, Expect: domain.BidPending})
			if err != nil {
				return err
			}
			rejected = append(rejected, r)
		}
		return nil
	})
	if err != nil {
		logger := log.Ctx(ctx)
		logger.Error().Err(err).Int64(log.FieldBidID, bid.ID).Msg("accept rolled back")
		return nil, err
	}
	unlock()

	target.Status = target.Type.AwardedStatus()
	target.AssigneeID = &assignee

	l.notifyAccepted(ctx, target, accepted, rejected)
	l.publish(ctx, events.TypeBidAccepted, accepted, actor.ID)
	for _, r := range rejected {
		l.publish(ctx, events.TypeBidRejected, r, actor.ID)
	}
	audit.LogWithDetail(ctx, audit.ActionBidAccept, actor.ID,
		fmt.Sprintf("%s rejected=%d", bidDetail(accepted), len(rejected)), "bid accepted")

	return &AcceptResult{Bid: accepted, Target: target, Rejected: rejected}, nil
}

func (l *ledgerImpl) RejectBid(ctx context.Context, actor domain.Actor, bidID int64) (*domain.Bid, error) {
	bid, target, unlock, err := l.loadForTransition(ctx, bidID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !canManage(actor, target) {
		return nil, fmt.Errorf("%w: only the owner or an administrator can reject bids", domain.ErrForbidden)
	}
	if err := pendingOnly(bid); err != nil {
		return nil, err
	}

	var rejected *domain.Bid
	err = l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		var err error
		rejected, err = tx.UpdateBid(ctx, bid.ID, domain.BidPatch{Status: domain.BidRejected, Expect: domain.BidPending})
		return err
	})
	if err != nil {
		return nil, err
	}
	unlock()

	l.notify(ctx, &domain.Notification{
		UserID:   rejected.BidderID,
		Title:    "Bid rejected",
		Message:  fmt.Sprintf("Your bid on the %s \"%s\" was rejected.", target.Type.Label(), target.Title),
		Category: domain.CategoryBid,
	}, rejected)
	l.publish(ctx, events.TypeBidRejected, rejected, actor.ID)
	audit.LogWithDetail(ctx, audit.ActionBidReject, actor.ID, bidDetail(rejected), "bid rejected")

	return rejected, nil
}

func (l *ledgerImpl) WithdrawBid(ctx context.Context, actor domain.Actor, bidID int64) (*domain.Bid, error) {
	bid, target, unlock, err := l.loadForTransition(ctx, bidID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if bid.BidderID != actor.ID {
		return nil, fmt.Errorf("%w: only the bidder can withdraw a bid", domain.ErrForbidden)
	}
	if err := pendingOnly(bid); err != nil {
		return nil, err
	}

	var withdrawn *domain.Bid
	err = l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		var err error
		withdrawn, err = tx.UpdateBid(ctx, bid.ID, domain.BidPatch{Status: domain.BidWithdrawn, Expect: domain.BidPending})
		if err != nil {
			return err
		}
		return refund(ctx, tx, bid)
	})
	if err != nil {
		return nil, err
	}
	unlock()

	l.notify(ctx, &domain.Notification{
		UserID:   target.OwnerID,
		Title:    "Bid withdrawn",
		Message:  fmt.Sprintf("%s withdrew their bid on \"%s\".", actorName(actor), target.Title),
		Category: domain.CategoryBid,
		Priority: domain.PriorityLow,
	}, withdrawn)
	l.publish(ctx, events.TypeBidWithdrawn, withdrawn, actor.ID)
	audit.LogWithDetail(ctx, audit.ActionBidWithdraw, actor.ID, bidDetail(withdrawn), "bid withdrawn")

	return withdrawn, nil
}

func (l *ledgerImpl) DeleteBid(ctx context.Context, actor domain.Actor, bidID int64) error {
	bid, _, unlock, err := l.loadForTransition(ctx, bidID)
	if err != nil {
		return err
	}
	defer unlock()

	if bid.BidderID != actor.ID {
		return fmt.Errorf("%w: only the bidder can delete a bid", domain.ErrForbidden)
	}
	if err := pendingOnly(bid); err != nil {
		return err
	}

	err = l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		if err := tx.DeleteBid(ctx, bid.ID); err != nil {
			return err
		}
		return refund(ctx, tx, bid)
	})
	if err != nil {
		return err
	}
	unlock()

	l.publish(ctx, events.TypeBidDeleted, bid, actor.ID)
	audit.LogWithDetail(ctx, audit.ActionBidDelete, actor.ID, bidDetail(bid), "bid deleted")
	return nil
}

func refund(ctx context.Context, tx gateway.Gateway, bid *domain.Bid) error {
	if bid.PointsToUse <= 0 {
		return nil
	}
	_, err := tx.UpdateUserPoints(ctx, bid.BidderID, bid.PointsToUse)
	return err
}

func (l *ledgerImpl) GetBid(ctx context.Context, bidID int64) (*domain.Bid, error) {
	return l.gw.GetBid(ctx, bidID)
}

func (l *ledgerImpl) ListBidsForTarget(ctx context.Context, targetType domain.TargetType, targetID int64) ([]*domain.Bid, error) {
	if _, err := gateway.GetTarget(ctx, l.gw, targetType, targetID); err != nil {
		return nil, err
	}
	return l.gw.GetBidsByTarget(ctx, targetType, targetID)
}

func (l *ledgerImpl) ListBidsByBidder(ctx context.Context, bidderID int64) ([]*domain.Bid, error) {
	return l.gw.GetBidsByBidder(ctx, bidderID)
}

func (l *ledgerImpl) Balance(ctx context.Context, userID int64) (int64, error) {
	return l.gw.GetUserPoints(ctx, userID)
}

func (l *ledgerImpl) GrantPoints(ctx context.Context, actor domain.Actor, req *domain.GrantPointsRequest) (int64, error) {
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("%w: only administrators can grant points", domain.ErrForbidden)
	}
	if req.UserID <= 0 || req.Amount <= 0 {
		return 0, fmt.Errorf("%w: userId and a positive amount are required", domain.ErrValidation)
	}

	var balance int64
	err := l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		var err error
		balance, err = tx.UpdateUserPoints(ctx, req.UserID, req.Amount)
		return err
	})
	if err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("You received %d points.", req.Amount)
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		msg = fmt.Sprintf("You received %d points: %s", req.Amount, reason)
	}
	if _, err := l.notifier.Dispatch(ctx, &domain.Notification{
		UserID:   req.UserID,
		Title:    "Points granted",
		Message:  msg,
		Category: domain.CategoryPoints,
	}); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Int64(log.FieldReceiverID, req.UserID).Msg("failed to notify points grant")
	}

	evt, err := events.NewEvent(events.TypePointsGranted, "user", req.UserID, actor.ID, map[string]interface{}{
		"amount":  req.Amount,
		"balance": balance,
		"reason":  req.Reason,
	})
	l.publishEvent(ctx, evt, err)
	audit.LogWithDetail(ctx, audit.ActionPointsGrant, actor.ID,
		fmt.Sprintf("user=%d amount=%d", req.UserID, req.Amount), "points granted")

	return balance, nil
}

func (l *ledgerImpl) OpenForBidding(ctx context.Context, actor domain.Actor, targetType domain.TargetType, targetID int64) (*domain.Target, error) {
	unlock, err := l.lockTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	target, err := gateway.GetTarget(ctx, l.gw, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, target) {
		return nil, fmt.Errorf("%w: only the owner or an administrator can publish", domain.ErrForbidden)
	}
	if target.Status != domain.StatusDraft {
		return nil, fmt.Errorf("%s %d is %s: %w", targetType.Label(), targetID, target.Status, domain.ErrInvalidState)
	}

	err = l.commit(ctx, func(ctx context.Context, tx gateway.Gateway) error {
		return gateway.UpdateTarget(ctx, tx, targetType, targetID, domain.TargetPatch{Status: domain.StatusPublished})
	})
	if err != nil {
		return nil, err
	}
	unlock()
	target.Status = domain.StatusPublished

	l.announce(ctx, target)

	evt, err := events.NewEvent(events.TypeTargetPublished, string(targetType), targetID, actor.ID, target)
	l.publishEvent(ctx, evt, err)
	audit.LogWithDetail(ctx, audit.ActionTargetPublish, actor.ID, targetType.Key(targetID), "target published")

	return target, nil
}

func (l *ledgerImpl) publish(ctx context.Context, eventType string, bid *domain.Bid, actorID int64) {
	evt, err := events.NewEvent(eventType, relatedBid, bid.ID, actorID, bid)
	l.publishEvent(ctx, evt, err)
}

func (l *ledgerImpl) publishEvent(ctx context.Context, evt *events.Event, err error) {
	if err == nil {
		err = l.publisher.Publish(ctx, evt)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("failed to publish ledger event")
	}
}

func bidDetail(b *domain.Bid) string {
	return fmt.Sprintf("bid=%d target=%s points=%d", b.ID, b.TargetType.Key(b.TargetID), b.PointsToUse)
}

func actorName(a domain.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("User %d", a.ID)
}
