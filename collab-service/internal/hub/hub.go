package hub

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/pkg/log"
)

// Hub maps each authenticated user to its single live client.
type Hub struct {
	clients map[int64]*Client // userID -> client
	mu      sync.RWMutex
	config  config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[int64]*Client),
		config:  cfg,
	}
}

// Register binds the client to its session's user. A client already bound to
// that user is superseded and its send channel closed.
func (h *Hub) Register(client *Client) {
	userID := client.Session.GetUserID()

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = client
	h.mu.Unlock()

	l := log.L()
	if prev != nil && prev != client {
		prev.Close()
		l.Info().Int64(log.FieldUserID, userID).Str(log.FieldClientID, prev.ID).Msg("client superseded")
	}
	l.Debug().Int64(log.FieldUserID, userID).Str(log.FieldClientID, client.ID).Msg("client registered")
}

// Unregister removes the client only if it is still the active one for its
// user and reports whether it did.
func (h *Hub) Unregister(client *Client) bool {
	userID := client.Session.GetUserID()

	h.mu.Lock()
	current, ok := h.clients[userID]
	removed := ok && current == client
	if removed {
		delete(h.clients, userID)
	}
	h.mu.Unlock()

	client.Close()

	if removed {
		l := log.L()
		l.Debug().Int64(log.FieldUserID, userID).Str(log.FieldClientID, client.ID).Msg("client unregistered")
	}
	return removed
}

// Lookup returns the active client for userID.
func (h *Hub) Lookup(userID int64) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// replayKeyed frames carry an identity used to drop pushes already covered
// by a connect replay.
type replayKeyed interface {
	ReplayKey() string
}

// SendTo pushes message to userID. It reports false when the user is offline
// or the client could not take the frame.
func (h *Hub) SendTo(userID int64, message interface{}) bool {
	c, ok := h.Lookup(userID)
	if !ok {
		return false
	}

	data, err := json.Marshal(message)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to marshal push")
		return false
	}
	key := ""
	if k, ok := message.(replayKeyed); ok {
		key = k.ReplayKey()
	}
	return c.push(data, key) == nil
}

// IsOnline reports whether userID has a registered client that is still open.
func (h *Hub) IsOnline(userID int64) bool {
	c, ok := h.Lookup(userID)
	return ok && !c.IsClosed()
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnlineUsers returns the connected user ids in ascending order.
func (h *Hub) OnlineUsers() []int64 {
	h.mu.RLock()
	ids := make([]int64, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CloseAll closes every client. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[int64]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
