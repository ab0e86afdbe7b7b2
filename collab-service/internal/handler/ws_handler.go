package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/collab-service/internal/service"
	"github.com/weiawesome/artisans-live/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the request. The client joins the hub only after
// a successful auth frame.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	l.Debug().Str(log.FieldClientID, client.ID).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) clientContext(client *hub.Client) context.Context {
	l := log.L()
	logger := l.With().Str(log.FieldClientID, client.ID).Logger()
	ctx := log.WithLogger(context.Background(), logger)
	if client.Session.IsAuthenticated() {
		ctx = log.WithUser(ctx, client.Session.GetUserID(), client.Session.GetUsername())
	}
	return ctx
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := h.clientContext(client)
	l := log.Ctx(ctx)

	frame, err := domain.DecodeFrame(message)
	if err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
		return
	}

	switch f := frame.(type) {
	case *domain.AuthFrame:
		if err := h.service.HandleAuth(ctx, client, f); err != nil {
			l.Info().Err(err).Msg("auth failed")
		}

	case *domain.MessageFrame:
		if err := h.service.HandleChatMessage(ctx, client, f); err != nil {
			l.Info().Err(err).Msg("chat message failed")
		}

	case *domain.MarkReadFrame:
		if err := h.service.HandleMarkRead(ctx, client, f); err != nil {
			l.Info().Err(err).Msg("mark read failed")
		}

	case *domain.PingFrame:
		client.SendMessage(domain.PongMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) handleClose(client *hub.Client) {
	h.service.HandleDisconnect(h.clientContext(client), client)
}

type onlineResponse struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

// OnlineStatus handles GET /online/{user_id}
func (h *WSHandler) OnlineStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(onlineResponse{
		UserID: userID,
		Online: h.hub.IsOnline(userID),
	})
}

func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/online/{user_id}", h.OnlineStatus).Methods(http.MethodGet)
}
