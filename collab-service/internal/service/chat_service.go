package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/artisans-live/collab-service/internal/audit"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/events"
	"github.com/weiawesome/artisans-live/collab-service/internal/gateway"
	"github.com/weiawesome/artisans-live/collab-service/internal/history"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/collab-service/internal/presence"
	"github.com/weiawesome/artisans-live/pkg/idgen"
	"github.com/weiawesome/artisans-live/pkg/log"
)

// PreviewLength is the rune count of message content shown in notifications.
const PreviewLength = 30

// ChatDeps wires a chat service. Tokens may be nil, in which case the
// identity in the auth frame is trusted.
type ChatDeps struct {
	Hub          *hub.Hub
	Gateway      gateway.Gateway
	History      history.Buffer
	Notifier     NotificationService
	IDs          *idgen.Snowflake
	Presence     presence.Presence
	Publisher    events.Publisher
	Tokens       TokenValidator
	WriteTimeout time.Duration
}

type chatService struct {
	hub          *hub.Hub
	gw           gateway.Gateway
	history      history.Buffer
	notifier     NotificationService
	ids          *idgen.Snowflake
	presence     presence.Presence
	publisher    events.Publisher
	tokens       TokenValidator
	writeTimeout time.Duration
	lookups      singleflight.Group
}

func NewChatService(deps ChatDeps) ChatService {
	s := &chatService{
		hub:          deps.Hub,
		gw:           deps.Gateway,
		history:      deps.History,
		notifier:     deps.Notifier,
		ids:          deps.IDs,
		presence:     deps.Presence,
		publisher:    deps.Publisher,
		tokens:       deps.Tokens,
		writeTimeout: deps.WriteTimeout,
	}
	if s.presence == nil {
		s.presence = presence.Noop{}
	}
	if s.publisher == nil {
		s.publisher = events.Discard{}
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 5 * time.Second
	}
	return s
}

func (s *chatService) HandleAuth(ctx context.Context, c *hub.Client, f *domain.AuthFrame) error {
	if c.Session.IsAuthenticated() {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Already authenticated"))
		return fmt.Errorf("%w: session already authenticated", domain.ErrValidation)
	}

	userID, username, role := f.UserID, f.Username, f.Role

	if s.tokens != nil {
		claims, err := s.tokens.ValidateToken(f.Token)
		if err != nil || (f.UserID != 0 && claims.UserID != f.UserID) {
			audit.Log(ctx, audit.ActionAuthFailed, f.UserID, "websocket auth rejected")
			s.authFailed(c, "Invalid token")
			return fmt.Errorf("%w: token rejected", domain.ErrAuthRequired)
		}
		userID, username, role = claims.UserID, claims.Username, domain.Role(claims.Role)
	}

	if userID <= 0 {
		s.authFailed(c, "userId is required")
		return fmt.Errorf("%w: missing user id", domain.ErrValidation)
	}

	if username == "" || role == "" {
		if u, err := s.lookupUser(ctx, userID); err == nil {
			if username == "" {
				username = u.Name()
			}
			if role == "" {
				role = u.Role
			}
		}
	}
	if !role.Valid() {
		s.authFailed(c, "Invalid role")
		return fmt.Errorf("%w: invalid role %q", domain.ErrValidation, role)
	}

	c.Session.Authenticate(userID, username, role)
	// Pushes arriving before the replay is written are parked on the client
	// and flushed after it, minus anything the replay already carried.
	c.Hold()
	s.hub.Register(c)

	ctx = log.WithUser(ctx, userID, username)
	if err := s.presence.Register(ctx, userID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to register presence")
	}
	audit.Log(ctx, audit.ActionAuth, userID, "websocket authenticated")

	if err := c.SendMessage(&domain.AuthResultMessage{
		Type:     domain.MsgTypeAuthResult,
		Success:  true,
		UserID:   userID,
		Username: username,
	}); err != nil {
		c.Release(nil)
		return err
	}

	if dropped := c.Release(s.replay(ctx, c, userID)); dropped > 0 {
		l := log.Ctx(ctx)
		l.Debug().Int("dropped", dropped).Msg("held pushes covered by replay")
	}
	return nil
}

func (s *chatService) authFailed(c *hub.Client, msg string) {
	c.SendMessage(&domain.AuthResultMessage{
		Type:    domain.MsgTypeAuthResult,
		Success: false,
		Message: msg,
	})
}

// replay sends recent history and then every unread notification. It returns
// the replay keys of everything it sent.
func (s *chatService) replay(ctx context.Context, c *hub.Client, userID int64) map[string]struct{} {
	l := log.Ctx(ctx)

	msgs, err := s.history.ForUser(ctx, userID)
	if err != nil {
		l.Error().Err(err).Msg("failed to load chat history")
	}
	c.SendMessage(domain.NewHistoryMessage(msgs))

	unread, err := s.notifier.ListUnread(ctx, userID)
	if err != nil {
		l.Error().Err(err).Msg("failed to load unread notifications")
	}
	c.SendMessage(domain.NewNotificationsMessage(unread))

	sent := make(map[string]struct{}, len(msgs)+len(unread))
	for _, m := range msgs {
		sent[domain.MessageReplayKey(m.ID)] = struct{}{}
	}
	for _, n := range unread {
		sent[domain.NotificationReplayKey(n.ID)] = struct{}{}
	}
	return sent
}

func (s *chatService) HandleChatMessage(ctx context.Context, c *hub.Client, f *domain.MessageFrame) error {
	if !c.Session.IsAuthenticated() {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Not authenticated"))
		return domain.ErrAuthRequired
	}

	actor := c.Session.Actor()
	ctx = log.WithUser(ctx, actor.ID, actor.Name)

	if _, err := s.Relay(ctx, actor, f); err != nil {
		msg := "Failed to send message"
		if errors.Is(err, domain.ErrValidation) {
			msg = "receiverId and content are required"
		}
		c.SendMessage(domain.NewErrorMessage(domain.ErrorCode(err), msg))
		return err
	}
	return nil
}

func (s *chatService) Relay(ctx context.Context, sender domain.Actor, f *domain.MessageFrame) (*domain.ChatMessage, error) {
	if sender.ID <= 0 {
		return nil, domain.ErrAuthRequired
	}
	if f.ReceiverID <= 0 || strings.TrimSpace(f.Content) == "" {
		return nil, fmt.Errorf("%w: receiverId and content are required", domain.ErrValidation)
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := &domain.ChatMessage{
		ID:         id,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		ReceiverID: f.ReceiverID,
		Content:    f.Content,
		ProjectID:  f.ProjectID,
		Timestamp:  time.Now().UTC(),
	}
	s.enrich(ctx, msg)

	l := log.Ctx(ctx)

	if err := s.history.Append(ctx, msg); err != nil {
		l.Warn().Err(err).Int64(log.FieldMessageID, msg.ID).Msg("failed to append chat history")
	}

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	err = s.gw.CreateMessage(wctx, msg)
	cancel()
	if err != nil {
		l.Error().Err(err).Int64(log.FieldMessageID, msg.ID).Msg("failed to persist chat message")
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	out := domain.NewChatMessageOut(msg)
	delivered := false
	if msg.ReceiverID != msg.SenderID {
		delivered = s.hub.SendTo(msg.ReceiverID, out)
	}
	s.hub.SendTo(msg.SenderID, out)

	title := "New message"
	if msg.SenderName != "" {
		title = "New message from " + msg.SenderName
	}
	relatedID := msg.ID
	if _, err := s.notifier.Dispatch(ctx, &domain.Notification{
		UserID:      msg.ReceiverID,
		Title:       title,
		Message:     domain.Preview(msg.Content, PreviewLength),
		Category:    domain.CategoryMessage,
		Priority:    domain.PriorityNormal,
		RelatedID:   &relatedID,
		RelatedType: "message",
		ActionURL:   fmt.Sprintf("/messages/%d", msg.SenderID),
	}); err != nil {
		l.Warn().Err(err).Int64(log.FieldMessageID, msg.ID).Msg("failed to dispatch message notification")
	}

	s.publish(ctx, events.TypeChatMessage, msg.SenderID, msg)

	audit.LogWithDetail(ctx, audit.ActionSendMessage, msg.SenderID,
		fmt.Sprintf("message=%d receiver=%d", msg.ID, msg.ReceiverID), "chat message sent")
	l.Debug().
		Int64(log.FieldMessageID, msg.ID).
		Int64(log.FieldReceiverID, msg.ReceiverID).
		Bool("delivered", delivered).
		Msg("chat message relayed")

	return msg, nil
}

// enrich fills display names. Failed lookups leave the fields empty.
func (s *chatService) enrich(ctx context.Context, msg *domain.ChatMessage) {
	if msg.SenderName == "" {
		if u, err := s.lookupUser(ctx, msg.SenderID); err == nil {
			msg.SenderName = u.Name()
		}
	}
	if u, err := s.lookupUser(ctx, msg.ReceiverID); err == nil {
		msg.ReceiverName = u.Name()
	}
	if msg.ProjectID != nil {
		if p, err := s.lookupProject(ctx, *msg.ProjectID); err == nil {
			msg.ProjectName = p.Title
		}
	}
}

func (s *chatService) lookupUser(ctx context.Context, id int64) (*domain.User, error) {
	v, err, _ := s.lookups.Do(fmt.Sprintf("user:%d", id), func() (interface{}, error) {
		return s.gw.GetUser(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

func (s *chatService) lookupProject(ctx context.Context, id int64) (*domain.Target, error) {
	v, err, _ := s.lookups.Do(fmt.Sprintf("project:%d", id), func() (interface{}, error) {
		return s.gw.GetProject(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Target), nil
}

func (s *chatService) publish(ctx context.Context, eventType string, actorID int64, msg *domain.ChatMessage) {
	evt, err := events.NewEvent(eventType, "message", msg.ID, actorID, map[string]interface{}{
		"senderId":   msg.SenderID,
		"receiverId": msg.ReceiverID,
		"projectId":  msg.ProjectID,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func (s *chatService) HandleMarkRead(ctx context.Context, c *hub.Client, f *domain.MarkReadFrame) error {
	if !c.Session.IsAuthenticated() {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "Not authenticated"))
		return domain.ErrAuthRequired
	}

	userID := c.Session.GetUserID()

	var (
		ids []int64
		err error
	)
	if len(f.NotificationIDs) == 0 {
		ids, err = s.notifier.MarkAllRead(ctx, userID)
	} else {
		ids, err = s.notifier.MarkManyRead(ctx, userID, f.NotificationIDs)
	}
	if err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "Failed to mark notifications read"))
		return err
	}

	return c.SendMessage(domain.NewNotificationsMarkedMessage(ids))
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	if !c.Session.IsAuthenticated() {
		c.Close()
		return
	}

	userID := c.Session.GetUserID()
	if !s.hub.Unregister(c) {
		// superseded by a newer connection for the same user
		return
	}

	if err := s.presence.Deregister(ctx, userID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("failed to deregister presence")
	}
	audit.Log(ctx, audit.ActionDisconnect, userID, "websocket disconnected")
}

func (s *chatService) Start(ctx context.Context) error {
	if err := s.presence.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start presence heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("chat service started")
	return nil
}

func (s *chatService) Stop() error {
	s.presence.StopHeartbeat()
	s.hub.CloseAll()
	return nil
}
