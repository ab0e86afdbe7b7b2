package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// WebSocket message types from client.
const (
	MsgTypeAuth     = "auth"
	MsgTypeMessage  = "message"
	MsgTypeMarkRead = "mark_read"
	MsgTypePing     = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult          = "auth_result"
	MsgTypeHistory             = "history"
	MsgTypeNotifications       = "notifications"
	MsgTypeNotification        = "notification"
	MsgTypeNotificationsMarked = "notifications_marked_read"
	MsgTypeError               = "error"
	MsgTypePong                = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ErrUnknownFrame is returned by DecodeFrame for an unrecognised type tag.
var ErrUnknownFrame = fmt.Errorf("%w: unknown message type", ErrValidation)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Frame is one of the client -> server messages below.
type Frame interface {
	frameType() string
}

type AuthFrame struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Token    string `json:"token,omitempty"`
}

type MessageFrame struct {
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
	ProjectID  *int64 `json:"projectId,omitempty"`
}

type MarkReadFrame struct {
	NotificationIDs []int64 `json:"notificationIds"`
}

type PingFrame struct{}

func (*AuthFrame) frameType() string     { return MsgTypeAuth }
func (*MessageFrame) frameType() string  { return MsgTypeMessage }
func (*MarkReadFrame) frameType() string { return MsgTypeMarkRead }
func (*PingFrame) frameType() string     { return MsgTypePing }

// DecodeFrame parses a raw client message into its concrete frame.
func DecodeFrame(data []byte) (Frame, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("%w: invalid message format", ErrValidation)
	}

	var f Frame
	switch base.Type {
	case MsgTypeAuth:
		f = &AuthFrame{}
	case MsgTypeMessage:
		f = &MessageFrame{}
	case MsgTypeMarkRead:
		f = &MarkReadFrame{}
	case MsgTypePing:
		return &PingFrame{}, nil
	default:
		return nil, ErrUnknownFrame
	}

	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: invalid %s message", ErrValidation, base.Type)
	}
	return f, nil
}

// Server -> Client messages

type AuthResultMessage struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

type HistoryMessage struct {
	Type     string         `json:"type"`
	Messages []*ChatMessage `json:"messages"`
}

type NotificationsMessage struct {
	Type          string          `json:"type"`
	Notifications []*Notification `json:"notifications"`
}

type ChatMessageOut struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message"`
}

type NotificationOut struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification"`
}

// MessageReplayKey identifies a chat message across pushes and replays.
func MessageReplayKey(id int64) string { return "message:" + strconv.FormatInt(id, 10) }

// NotificationReplayKey identifies a notification across pushes and replays.
func NotificationReplayKey(id int64) string { return "notification:" + strconv.FormatInt(id, 10) }

func (m *ChatMessageOut) ReplayKey() string {
	if m.Message == nil {
		return ""
	}
	return MessageReplayKey(m.Message.ID)
}

func (m *NotificationOut) ReplayKey() string {
	if m.Notification == nil {
		return ""
	}
	return NotificationReplayKey(m.Notification.ID)
}

type NotificationsMarkedMessage struct {
	Type            string  `json:"type"`
	NotificationIDs []int64 `json:"notificationIds"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongMessage struct {
	Type string `json:"type"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

func NewHistoryMessage(msgs []*ChatMessage) *HistoryMessage {
	if msgs == nil {
		msgs = []*ChatMessage{}
	}
	return &HistoryMessage{Type: MsgTypeHistory, Messages: msgs}
}

func NewNotificationsMessage(ns []*Notification) *NotificationsMessage {
	if ns == nil {
		ns = []*Notification{}
	}
	return &NotificationsMessage{Type: MsgTypeNotifications, Notifications: ns}
}

func NewChatMessageOut(m *ChatMessage) *ChatMessageOut {
	return &ChatMessageOut{Type: MsgTypeMessage, Message: m}
}

func NewNotificationOut(n *Notification) *NotificationOut {
	return &NotificationOut{Type: MsgTypeNotification, Notification: n}
}

func NewNotificationsMarkedMessage(ids []int64) *NotificationsMarkedMessage {
	if ids == nil {
		ids = []int64{}
	}
	return &NotificationsMarkedMessage{Type: MsgTypeNotificationsMarked, NotificationIDs: ids}
}
