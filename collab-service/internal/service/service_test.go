package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/gateway"
	"github.com/weiawesome/artisans-live/collab-service/internal/history"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/pkg/idgen"
)

type fixture struct {
	hub      *hub.Hub
	gw       *gateway.MemoryGateway
	history  *history.MemoryBuffer
	notifier NotificationService
	chat     ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ids, err := idgen.NewSnowflake(1, 0)
	require.NoError(t, err)

	f := &fixture{
		hub:     hub.NewHub(config.WebSocketConfig{}),
		gw:      gateway.NewMemoryGateway(),
		history: history.NewMemoryBuffer(100),
	}
	f.notifier = NewNotificationService(f.gw, f.hub, config.NotificationConfig{})
	f.chat = NewChatService(ChatDeps{
		Hub:      f.hub,
		Gateway:  f.gw,
		History:  f.history,
		Notifier: f.notifier,
		IDs:      ids,
	})
	return f
}

func (f *fixture) user(id int64, name string, role domain.Role) {
	f.gw.PutUser(&domain.User{ID: id, Username: name, Role: role})
}

func (f *fixture) connect(t *testing.T, userID int64, name string) *hub.Client {
	t.Helper()
	c := hub.NewClient(fmt.Sprintf("client-%d", userID), f.hub, nil, config.WebSocketConfig{SendBuffer: 64})
	require.NoError(t, f.chat.HandleAuth(context.Background(), c, &domain.AuthFrame{
		UserID:   userID,
		Username: name,
		Role:     domain.RoleClient,
	}))
	return c
}

// frame is the loosely decoded shape of any outbound frame.
type frame struct {
	Type          string                 `json:"type"`
	Success       bool                   `json:"success"`
	Code          string                 `json:"code"`
	Message       json.RawMessage        `json:"message"`
	Messages      []*domain.ChatMessage  `json:"messages"`
	Notifications []*domain.Notification `json:"notifications"`
	Notification  *domain.Notification   `json:"notification"`
	IDs           []int64                `json:"notificationIds"`
}

func (f frame) chat(t *testing.T) *domain.ChatMessage {
	t.Helper()
	var m domain.ChatMessage
	require.NoError(t, json.Unmarshal(f.Message, &m))
	return &m
}

func drain(t *testing.T, c *hub.Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return out
			}
			var fr frame
			require.NoError(t, json.Unmarshal(data, &fr))
			out = append(out, fr)
		default:
			return out
		}
	}
}

func types(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}

var errBoom = errors.New("boom")

func mustIDs(t *testing.T) *idgen.Snowflake {
	t.Helper()
	ids, err := idgen.NewSnowflake(2, 0)
	require.NoError(t, err)
	return ids
}
