package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/gateway"
	"github.com/weiawesome/artisans-live/pkg/log"
)

type notificationService struct {
	gw           gateway.Gateway
	pusher       Pusher
	fanOutLimit  int
	writeTimeout time.Duration
	listLimit    int
}

func NewNotificationService(gw gateway.Gateway, pusher Pusher, cfg config.NotificationConfig) NotificationService {
	s := &notificationService{
		gw:           gw,
		pusher:       pusher,
		fanOutLimit:  cfg.FanOutLimit,
		writeTimeout: cfg.WriteTimeout,
		listLimit:    cfg.ListLimit,
	}
	if s.fanOutLimit <= 0 {
		s.fanOutLimit = 16
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 5 * time.Second
	}
	if s.listLimit <= 0 {
		s.listLimit = 50
	}
	return s
}

func (s *notificationService) Dispatch(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	out, _, err := s.dispatch(ctx, n)
	return out, err
}

func (s *notificationService) dispatch(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	if n.UserID <= 0 || strings.TrimSpace(n.Title) == "" {
		return nil, false, fmt.Errorf("%w: notification needs a recipient and a title", domain.ErrValidation)
	}
	if n.Category == "" {
		n.Category = domain.CategorySystem
	}
	if n.Priority == "" {
		n.Priority = domain.PriorityNormal
	}
	n.Read = false

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	err := s.gw.CreateNotification(wctx, n)
	cancel()
	if err != nil {
		return nil, false, fmt.Errorf("failed to persist notification: %w", err)
	}

	pushed := s.pusher.SendTo(n.UserID, domain.NewNotificationOut(n))

	l := log.Ctx(ctx)
	l.Debug().
		Int64(log.FieldNotificationID, n.ID).
		Int64(log.FieldReceiverID, n.UserID).
		Bool("pushed", pushed).
		Msg("notification dispatched")

	return n.Clone(), pushed, nil
}

func (s *notificationService) FanOut(ctx context.Context, recipients []int64, build func(userID int64) *domain.Notification) FanOutResult {
	var persisted, pushed, failed atomic.Int64

	seen := make(map[int64]struct{}, len(recipients))
	g := new(errgroup.Group)
	g.SetLimit(s.fanOutLimit)

	for _, id := range recipients {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}

		userID := id
		g.Go(func() error {
			n := build(userID)
			if n == nil {
				return nil
			}
			n.UserID = userID

			_, ok, err := s.dispatch(ctx, n)
			if err != nil {
				failed.Add(1)
				l := log.Ctx(ctx)
				l.Warn().Err(err).Int64(log.FieldReceiverID, userID).Msg("fan-out delivery failed")
				return nil
			}
			persisted.Add(1)
			if ok {
				pushed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return FanOutResult{
		Persisted: int(persisted.Load()),
		Pushed:    int(pushed.Load()),
		Failed:    int(failed.Load()),
	}
}

func (s *notificationService) Get(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	n, err := s.gw.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	return s.gw.MarkNotificationAsRead(ctx, userID, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) ([]int64, error) {
	return s.gw.MarkAllNotificationsAsRead(ctx, userID)
}

func (s *notificationService) MarkManyRead(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	return s.gw.MarkNotificationsAsRead(ctx, userID, ids)
}

func (s *notificationService) Delete(ctx context.Context, userID, id int64) error {
	return s.gw.DeleteNotification(ctx, userID, id)
}

func (s *notificationService) ListUnread(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return s.gw.GetUnreadNotificationsByUserID(ctx, userID)
}

func (s *notificationService) List(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}
	return s.gw.ListNotificationsByUserID(ctx, userID, limit)
}
