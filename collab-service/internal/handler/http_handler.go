package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/artisans-live/collab-service/internal/domain"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/collab-service/internal/ledger"
	"github.com/weiawesome/artisans-live/collab-service/internal/service"
	"github.com/weiawesome/artisans-live/pkg/log"
	"github.com/weiawesome/artisans-live/pkg/middleware"
	"github.com/weiawesome/artisans-live/pkg/response"
)

// Handler serves the bid, points and notification API.
type Handler struct {
	ledger         ledger.Ledger
	notifier       service.NotificationService
	hub            *hub.Hub
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler. With a nil authMiddleware only the
// public routes are registered.
func NewHandler(l ledger.Ledger, notifier service.NotificationService, h *hub.Hub, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		ledger:         l,
		notifier:       notifier,
		hub:            h,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.GET("/presence", h.Presence)

	if h.authMiddleware == nil {
		return
	}

	protected := api.Group("", h.authMiddleware.RequireAuth())
	{
		bids := protected.Group("/bids")
		{
			bids.POST("", h.CreateBid)
			bids.GET("/mine", h.MyBids)
			bids.GET("/:id", h.GetBid)
			bids.POST("/:id/accept", h.AcceptBid)
			bids.POST("/:id/reject", h.RejectBid)
			bids.POST("/:id/withdraw", h.WithdrawBid)
			bids.DELETE("/:id", h.DeleteBid)
		}

		targets := protected.Group("/targets/:type/:id")
		{
			targets.GET("/bids", h.TargetBids)
			targets.POST("/publish", h.Publish)
		}

		points := protected.Group("/points")
		{
			points.GET("", h.Balance)
			points.POST("/grant", h.GrantPoints)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.GET("/unread", h.UnreadNotifications)
			notifications.POST("/read", h.MarkManyRead)
			notifications.POST("/read-all", h.MarkAllRead)
			notifications.GET("/:id", h.GetNotification)
			notifications.POST("/:id/read", h.MarkRead)
			notifications.DELETE("/:id", h.DeleteNotification)
		}
	}
}

func actor(c *gin.Context) (domain.Actor, bool) {
	a := domain.Actor{
		ID:   middleware.GetUserID(c),
		Name: middleware.GetUsername(c),
		Role: domain.Role(middleware.GetRole(c)),
	}
	if a.ID <= 0 {
		response.Unauthorized(c, "unauthorized")
		return a, false
	}
	c.Request = c.Request.WithContext(log.WithUser(c.Request.Context(), a.ID, a.Name))
	return a, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// fail maps a service error onto the response envelope.
func fail(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrAuthRequired):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		response.PaymentRequired(c, "insufficient points")
	case errors.Is(err, domain.ErrDuplicateBid):
		response.Conflict(c, "DUPLICATE_BID", err.Error())
	case errors.Is(err, domain.ErrNotOpenForBidding):
		response.Conflict(c, "NOT_OPEN_FOR_BIDDING", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		response.Conflict(c, "INVALID_STATE", err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to " + what)
		response.InternalError(c, "failed to "+what)
	}
}

// Presence reports which users hold a live socket on this node.
func (h *Handler) Presence(c *gin.Context) {
	response.Success(c, gin.H{
		"online": h.hub.OnlineCount(),
		"users":  h.hub.OnlineUsers(),
	})
}

// CreateBid submits a bid.
func (h *Handler) CreateBid(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req domain.CreateBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("failed to bind create bid request")
		response.BadRequest(c, err.Error())
		return
	}

	bid, err := h.ledger.CreateBid(c.Request.Context(), a, &req)
	if err != nil {
		fail(c, err, "create bid")
		return
	}
	response.Created(c, bid)
}

func (h *Handler) GetBid(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bid, err := h.ledger.GetBid(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get bid")
		return
	}
	response.Success(c, bid)
}

func (h *Handler) MyBids(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	bids, err := h.ledger.ListBidsByBidder(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err, "list bids")
		return
	}
	response.Success(c, nonNil(bids))
}

func (h *Handler) TargetBids(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	targetType, err := domain.ParseTargetType(c.Param("type"))
	if err != nil {
		fail(c, err, "list bids")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bids, err := h.ledger.ListBidsForTarget(c.Request.Context(), targetType, id)
	if err != nil {
		fail(c, err, "list bids")
		return
	}
	response.Success(c, nonNil(bids))
}

func (h *Handler) AcceptBid(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	res, err := h.ledger.AcceptBid(c.Request.Context(), a, id)
	if err != nil {
		fail(c, err, "accept bid")
		return
	}
	response.Success(c, res)
}

func (h *Handler) RejectBid(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bid, err := h.ledger.RejectBid(c.Request.Context(), a, id)
	if err != nil {
		fail(c, err, "reject bid")
		return
	}
	response.Success(c, bid)
}

func (h *Handler) WithdrawBid(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	bid, err := h.ledger.WithdrawBid(c.Request.Context(), a, id)
	if err != nil {
		fail(c, err, "withdraw bid")
		return
	}
	response.Success(c, bid)
}

func (h *Handler) DeleteBid(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteBid(c.Request.Context(), a, id); err != nil {
		fail(c, err, "delete bid")
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

// Publish opens a draft target for bidding.
func (h *Handler) Publish(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	targetType, err := domain.ParseTargetType(c.Param("type"))
	if err != nil {
		fail(c, err, "publish")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	target, err := h.ledger.OpenForBidding(c.Request.Context(), a, targetType, id)
	if err != nil {
		fail(c, err, "publish")
		return
	}
	response.Success(c, target)
}

func (h *Handler) Balance(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	points, err := h.ledger.Balance(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err, "get balance")
		return
	}
	response.Success(c, gin.H{"userId": a.ID, "points": points})
}

func (h *Handler) GrantPoints(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req domain.GrantPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	points, err := h.ledger.GrantPoints(c.Request.Context(), a, &req)
	if err != nil {
		fail(c, err, "grant points")
		return
	}
	response.Success(c, gin.H{"userId": req.UserID, "points": points})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	ns, err := h.notifier.List(c.Request.Context(), a.ID, limit)
	if err != nil {
		fail(c, err, "list notifications")
		return
	}
	response.Success(c, nonNil(ns))
}

func (h *Handler) UnreadNotifications(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	ns, err := h.notifier.ListUnread(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err, "list notifications")
		return
	}
	response.Success(c, nonNil(ns))
}

func (h *Handler) GetNotification(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifier.Get(c.Request.Context(), a.ID, id)
	if err != nil {
		fail(c, err, "get notification")
		return
	}
	response.Success(c, n)
}

func (h *Handler) MarkRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifier.MarkRead(c.Request.Context(), a.ID, id)
	if err != nil {
		fail(c, err, "mark notification read")
		return
	}
	response.Success(c, n)
}

func (h *Handler) MarkManyRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ids, err := h.notifier.MarkManyRead(c.Request.Context(), a.ID, req.NotificationIDs)
	if err != nil {
		fail(c, err, "mark notifications read")
		return
	}
	response.Success(c, gin.H{"notificationIds": ids})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	ids, err := h.notifier.MarkAllRead(c.Request.Context(), a.ID)
	if err != nil {
		fail(c, err, "mark notifications read")
		return
	}
	response.Success(c, gin.H{"notificationIds": ids})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifier.Delete(c.Request.Context(), a.ID, id); err != nil {
		fail(c, err, "delete notification")
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
