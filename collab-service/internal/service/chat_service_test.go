package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/history"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/pkg/jwt"
)

func TestAuthSendsResultHistoryAndNotifications(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1, "alice")

	frames := drain(t, c)
	assert.Equal(t, []string{
		domain.MsgTypeAuthResult,
		domain.MsgTypeHistory,
		domain.MsgTypeNotifications,
	}, types(frames))
	assert.True(t, frames[0].Success)
	assert.NotNil(t, frames[1].Messages)
	assert.NotNil(t, frames[2].Notifications)
	assert.True(t, f.hub.IsOnline(1))
}

func TestAuthRejectsSecondAuth(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1, "alice")
	drain(t, c)

	err := f.chat.HandleAuth(context.Background(), c, &domain.AuthFrame{UserID: 2, Username: "eve", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int64(1), c.Session.GetUserID())

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.ErrCodeBadRequest, frames[0].Code)
}

func TestAuthFillsIdentityFromGateway(t *testing.T) {
	f := newFixture(t)
	f.user(3, "carol", domain.RoleContractor)

	c := hub.NewClient("c", f.hub, nil, config.WebSocketConfig{})
	require.NoError(t, f.chat.HandleAuth(context.Background(), c, &domain.AuthFrame{UserID: 3}))

	assert.Equal(t, "carol", c.Session.GetUsername())
	assert.Equal(t, domain.RoleContractor, c.Session.Actor().Role)
}

func TestAuthRejectsMissingUser(t *testing.T) {
	f := newFixture(t)
	c := hub.NewClient("c", f.hub, nil, config.WebSocketConfig{})

	err := f.chat.HandleAuth(context.Background(), c, &domain.AuthFrame{Username: "x", Role: domain.RoleClient})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, c.Session.IsAuthenticated())

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.MsgTypeAuthResult, frames[0].Type)
	assert.False(t, frames[0].Success)
}

func TestAuthWithTokenValidator(t *testing.T) {
	f := newFixture(t)
	tokens, err := jwt.NewManager("secret", "artisans", 0)
	require.NoError(t, err)

	svc := NewChatService(ChatDeps{
		Hub:      f.hub,
		Gateway:  f.gw,
		History:  f.history,
		Notifier: f.notifier,
		IDs:      mustIDs(t),
		Tokens:   tokens,
	})

	token, err := tokens.Sign(4, "dave", string(domain.RoleSupplier))
	require.NoError(t, err)

	bad := hub.NewClient("bad", f.hub, nil, config.WebSocketConfig{})
	err = svc.HandleAuth(context.Background(), bad, &domain.AuthFrame{UserID: 5, Token: token})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.False(t, bad.Session.IsAuthenticated())

	good := hub.NewClient("good", f.hub, nil, config.WebSocketConfig{})
	require.NoError(t, svc.HandleAuth(context.Background(), good, &domain.AuthFrame{UserID: 4, Username: "spoof", Token: token}))
	assert.Equal(t, "dave", good.Session.GetUsername())
	assert.Equal(t, domain.RoleSupplier, good.Session.Actor().Role)
}

// snapshotHookBuffer runs during once, just before the history snapshot.
type snapshotHookBuffer struct {
	history.Buffer
	during func()
}

func (b *snapshotHookBuffer) ForUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error) {
	if fn := b.during; fn != nil {
		b.during = nil
		fn()
	}
	return b.Buffer.ForUser(ctx, userID)
}

// unreadHookNotifier runs during once, just before unread notifications load.
type unreadHookNotifier struct {
	NotificationService
	during func()
}

func (n *unreadHookNotifier) ListUnread(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	if fn := n.during; fn != nil {
		n.during = nil
		fn()
	}
	return n.NotificationService.ListUnread(ctx, userID)
}

func TestMessageRelayedBeforeSnapshotArrivesOnlyInReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, 1, "alice")
	drain(t, alice)

	buf := &snapshotHookBuffer{Buffer: f.history}
	svc := NewChatService(ChatDeps{
		Hub:      f.hub,
		Gateway:  f.gw,
		History:  buf,
		Notifier: f.notifier,
		IDs:      mustIDs(t),
	})

	var relayed *domain.ChatMessage
	buf.during = func() {
		var err error
		relayed, err = svc.Relay(ctx, alice.Session.Actor(), &domain.MessageFrame{ReceiverID: 2, Content: "hi bob"})
		require.NoError(t, err)
	}

	bob := hub.NewClient("bob", f.hub, nil, config.WebSocketConfig{SendBuffer: 64})
	require.NoError(t, svc.HandleAuth(ctx, bob, &domain.AuthFrame{UserID: 2, Username: "bob", Role: domain.RoleClient}))

	frames := drain(t, bob)
	require.Equal(t, []string{
		domain.MsgTypeAuthResult,
		domain.MsgTypeHistory,
		domain.MsgTypeNotifications,
	}, types(frames))
	require.Len(t, frames[1].Messages, 1)
	assert.Equal(t, relayed.ID, frames[1].Messages[0].ID)
	require.Len(t, frames[2].Notifications, 1)
	assert.Equal(t, relayed.ID, *frames[2].Notifications[0].RelatedID)
}

func TestMessageRelayedAfterSnapshotFollowsReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.connect(t, 1, "alice")
	drain(t, alice)

	notifier := &unreadHookNotifier{NotificationService: f.notifier}
	svc := NewChatService(ChatDeps{
		Hub:      f.hub,
		Gateway:  f.gw,
		History:  f.history,
		Notifier: notifier,
		IDs:      mustIDs(t),
	})

	var relayed *domain.ChatMessage
	notifier.during = func() {
		var err error
		relayed, err = svc.Relay(ctx, alice.Session.Actor(), &domain.MessageFrame{ReceiverID: 2, Content: "hi bob"})
		require.NoError(t, err)
	}

	bob := hub.NewClient("bob", f.hub, nil, config.WebSocketConfig{SendBuffer: 64})
	require.NoError(t, svc.HandleAuth(ctx, bob, &domain.AuthFrame{UserID: 2, Username: "bob", Role: domain.RoleClient}))

	frames := drain(t, bob)
	require.Equal(t, []string{
		domain.MsgTypeAuthResult,
		domain.MsgTypeHistory,
		domain.MsgTypeNotifications,
		domain.MsgTypeMessage,
	}, types(frames))
	assert.Empty(t, frames[1].Messages)
	require.Len(t, frames[2].Notifications, 1)
	assert.Equal(t, relayed.ID, frames[3].chat(t).ID)
}

func TestMessageRequiresAuth(t *testing.T) {
	f := newFixture(t)
	c := hub.NewClient("anon", f.hub, nil, config.WebSocketConfig{})

	err := f.chat.HandleChatMessage(context.Background(), c, &domain.MessageFrame{ReceiverID: 2, Content: "hi"})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.ErrCodeUnauthorized, frames[0].Code)
	assert.Empty(t, f.gw.Messages())
}

func TestMessageValidation(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1, "alice")
	drain(t, c)

	for _, fr := range []*domain.MessageFrame{
		{ReceiverID: 0, Content: "hi"},
		{ReceiverID: 2, Content: "   "},
	} {
		err := f.chat.HandleChatMessage(context.Background(), c, fr)
		assert.ErrorIs(t, err, domain.ErrValidation)

		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, domain.ErrCodeBadRequest, frames[0].Code)
	}
	assert.Empty(t, f.gw.Messages())
}

func TestMessageDeliveredAndEchoed(t *testing.T) {
	f := newFixture(t)
	f.user(2, "bob", domain.RoleContractor)
	f.gw.PutTarget(&domain.Target{ID: 7, Type: domain.TargetProject, OwnerID: 1, Title: "Kitchen", Status: domain.StatusInProgress})

	sender := f.connect(t, 1, "alice")
	receiver := f.connect(t, 2, "bob")
	drain(t, sender)
	drain(t, receiver)

	project := int64(7)
	require.NoError(t, f.chat.HandleChatMessage(context.Background(), sender, &domain.MessageFrame{
		ReceiverID: 2,
		Content:    "hello bob",
		ProjectID:  &project,
	}))

	echo := drain(t, sender)
	require.Len(t, echo, 1)
	assert.Equal(t, domain.MsgTypeMessage, echo[0].Type)

	got := drain(t, receiver)
	assert.Equal(t, []string{domain.MsgTypeMessage, domain.MsgTypeNotification}, types(got))
	msg := got[0].chat(t)
	assert.Equal(t, "hello bob", msg.Content)
	assert.Equal(t, "alice", msg.SenderName)
	assert.Equal(t, "bob", msg.ReceiverName)
	assert.Equal(t, "Kitchen", msg.ProjectName)
	assert.Equal(t, "New message from alice", got[1].Notification.Title)
	assert.Equal(t, domain.CategoryMessage, got[1].Notification.Category)
	require.NotNil(t, got[1].Notification.RelatedID)
	assert.Equal(t, msg.ID, *got[1].Notification.RelatedID)

	stored := f.gw.Messages()
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)
}

func TestMessageToSelfIsEchoedOnce(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, 1, "alice")
	drain(t, c)

	_, err := f.chat.Relay(context.Background(), c.Session.Actor(), &domain.MessageFrame{ReceiverID: 1, Content: "note"})
	require.NoError(t, err)

	frames := drain(t, c)
	assert.Equal(t, []string{domain.MsgTypeMessage, domain.MsgTypeNotification}, types(frames))
}

func TestOfflineReceiverGetsHistoryAndTruncatedPreview(t *testing.T) {
	f := newFixture(t)
	sender := f.connect(t, 1, "sam")
	drain(t, sender)

	content := strings.Repeat("abcdefghi", 5)
	require.Len(t, content, 45)
	require.NoError(t, f.chat.HandleChatMessage(context.Background(), sender, &domain.MessageFrame{ReceiverID: 2, Content: content}))
	assert.Len(t, f.gw.Messages(), 1)

	receiver := f.connect(t, 2, "ursula")
	frames := drain(t, receiver)
	require.Equal(t, []string{
		domain.MsgTypeAuthResult,
		domain.MsgTypeHistory,
		domain.MsgTypeNotifications,
	}, types(frames))

	require.Len(t, frames[1].Messages, 1)
	assert.Equal(t, content, frames[1].Messages[0].Content)

	require.Len(t, frames[2].Notifications, 1)
	assert.Equal(t, content[:30]+"...", frames[2].Notifications[0].Message)
}

func TestHistoryReplayIsOldestFirst(t *testing.T) {
	f := newFixture(t)
	sender := f.connect(t, 1, "alice")

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.chat.Relay(context.Background(), sender.Session.Actor(), &domain.MessageFrame{ReceiverID: 2, Content: text})
		require.NoError(t, err)
	}
	_, err := f.chat.Relay(context.Background(), sender.Session.Actor(), &domain.MessageFrame{ReceiverID: 3, Content: "other"})
	require.NoError(t, err)

	receiver := f.connect(t, 2, "bob")
	frames := drain(t, receiver)
	require.GreaterOrEqual(t, len(frames), 2)

	var got []string
	for _, m := range frames[1].Messages {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestPersistFailureSkipsDeliveryAndNotification(t *testing.T) {
	f := newFixture(t)
	sender := f.connect(t, 1, "alice")
	receiver := f.connect(t, 2, "bob")
	drain(t, sender)
	drain(t, receiver)

	f.gw.SetFault(func(op string) error {
		if op == "CreateMessage" {
			return errBoom
		}
		return nil
	})

	err := f.chat.HandleChatMessage(context.Background(), sender, &domain.MessageFrame{ReceiverID: 2, Content: "lost"})
	require.ErrorIs(t, err, errBoom)

	frames := drain(t, sender)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.MsgTypeError, frames[0].Type)
	assert.Equal(t, domain.ErrCodeInternalError, frames[0].Code)
	assert.Empty(t, drain(t, receiver))

	f.gw.SetFault(nil)
	unread, err := f.notifier.ListUnread(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestMarkReadFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.connect(t, 1, "alice")

	a, err := f.notifier.Dispatch(ctx, &domain.Notification{UserID: 1, Title: "a"})
	require.NoError(t, err)
	_, err = f.notifier.Dispatch(ctx, &domain.Notification{UserID: 1, Title: "b"})
	require.NoError(t, err)
	drain(t, c)

	require.NoError(t, f.chat.HandleMarkRead(ctx, c, &domain.MarkReadFrame{NotificationIDs: []int64{a.ID}}))
	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.MsgTypeNotificationsMarked, frames[0].Type)
	assert.Equal(t, []int64{a.ID}, frames[0].IDs)

	require.NoError(t, f.chat.HandleMarkRead(ctx, c, &domain.MarkReadFrame{}))
	frames = drain(t, c)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].IDs, 1)

	unread, err := f.notifier.ListUnread(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestDisconnectOnlyRemovesActiveClient(t *testing.T) {
	f := newFixture(t)
	old := f.connect(t, 1, "alice")
	fresh := f.connect(t, 1, "alice")

	f.chat.HandleDisconnect(context.Background(), old)
	assert.True(t, f.hub.IsOnline(1))

	f.chat.HandleDisconnect(context.Background(), fresh)
	assert.False(t, f.hub.IsOnline(1))
	assert.True(t, fresh.IsClosed())
}
