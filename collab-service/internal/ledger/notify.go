package ledger

import (
	"context"
	"fmt"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/pkg/log"
)

func bidNotification(title, msg string, priority domain.Priority, bid *domain.Bid) *domain.Notification {
	related := bid.ID
	return &domain.Notification{
		Title:       title,
		Message:     msg,
		Category:    domain.CategoryBid,
		Priority:    priority,
		RelatedID:   &related,
		RelatedType: relatedBid,
		ActionURL:   fmt.Sprintf("/bids/%d", bid.ID),
	}
}

// notify dispatches a single bid notification. Failures are logged only.
func (l *ledgerImpl) notify(ctx context.Context, n *domain.Notification, bid *domain.Bid) {
	full := bidNotification(n.Title, n.Message, n.Priority, bid)
	full.UserID = n.UserID
	if n.Category != "" {
		full.Category = n.Category
	}

	if _, err := l.notifier.Dispatch(ctx, full); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).
			Int64(log.FieldBidID, bid.ID).
			Int64(log.FieldReceiverID, n.UserID).
			Msg("failed to dispatch bid notification")
	}
}

// notifyNewBid tells the target owner and every administrator about a bid.
func (l *ledgerImpl) notifyNewBid(ctx context.Context, bidder domain.Actor, target *domain.Target, bid *domain.Bid) {
	recipients := []int64{target.OwnerID}
	admins, err := l.gw.ListUsersByRole(ctx, domain.RoleAdmin)
	if err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("failed to list administrators")
	}
	for _, a := range admins {
		recipients = append(recipients, a.ID)
	}

	msg := fmt.Sprintf("%s bid %.2f on the %s \"%s\".", actorName(bidder), bid.Amount, target.Type.Label(), target.Title)
	l.notifier.FanOut(ctx, recipients, func(userID int64) *domain.Notification {
		if userID == bidder.ID {
			return nil
		}
		return bidNotification("New bid received", msg, domain.PriorityNormal, bid)
	})
}

// notifyAccepted tells the winner, the owner and every rejected bidder.
func (l *ledgerImpl) notifyAccepted(ctx context.Context, target *domain.Target, accepted *domain.Bid, rejected []*domain.Bid) {
	l.notify(ctx, &domain.Notification{
		UserID:   accepted.BidderID,
		Title:    "Bid accepted",
		Message:  fmt.Sprintf("Your bid on the %s \"%s\" was accepted.", target.Type.Label(), target.Title),
		Priority: domain.PriorityHigh,
	}, accepted)

	if target.OwnerID != accepted.BidderID {
		l.notify(ctx, &domain.Notification{
			UserID:  target.OwnerID,
			Title:   "Bid awarded",
			Message: fmt.Sprintf("The %s \"%s\" was awarded.", target.Type.Label(), target.Title),
		}, accepted)
	}

	byBidder := make(map[int64]*domain.Bid, len(rejected))
	recipients := make([]int64, 0, len(rejected))
	for _, r := range rejected {
		byBidder[r.BidderID] = r
		recipients = append(recipients, r.BidderID)
	}
	msg := fmt.Sprintf("Another bid was selected for the %s \"%s\".", target.Type.Label(), target.Title)
	l.notifier.FanOut(ctx, recipients, func(userID int64) *domain.Notification {
		return bidNotification("Bid not selected", msg, domain.PriorityNormal, byBidder[userID])
	})
}

// announce tells every service provider that a target is open for bids.
func (l *ledgerImpl) announce(ctx context.Context, target *domain.Target) {
	logger := log.Ctx(ctx)

	providers, err := l.gw.ListUsersByRole(ctx, domain.ProviderRoles...)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list service providers")
		return
	}

	ids := make([]int64, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.ID)
	}

	related := target.ID
	msg := fmt.Sprintf("A new %s \"%s\" is open for bidding.", target.Type.Label(), target.Title)
	res := l.notifier.FanOut(ctx, ids, func(userID int64) *domain.Notification {
		return &domain.Notification{
			Title:       fmt.Sprintf("New %s available", target.Type.Label()),
			Message:     msg,
			Category:    target.Type.Category(),
			RelatedID:   &related,
			RelatedType: string(target.Type),
			ActionURL:   fmt.Sprintf("/%ss/%d", target.Type, target.ID),
		}
	})

	logger.Info().
		Str(log.FieldTargetType, string(target.Type)).
		Int64(log.FieldTargetID, target.ID).
		Int("persisted", res.Persisted).
		Int("pushed", res.Pushed).
		Int("failed", res.Failed).
		Msg("target announced")
}
