package audit

import (
	"context"

	"github.com/weiawesome/artisans-live/pkg/log"
)

// Audit actions for collab-service.
const (
	ActionAuth          = "collab.auth"
	ActionAuthFailed    = "collab.auth_failed"
	ActionSendMessage   = "collab.send_message"
	ActionDisconnect    = "collab.disconnect"
	ActionBidCreate     = "collab.bid_create"
	ActionBidAccept     = "collab.bid_accept"
	ActionBidReject     = "collab.bid_reject"
	ActionBidWithdraw   = "collab.bid_withdraw"
	ActionBidDelete     = "collab.bid_delete"
	ActionTargetPublish = "collab.target_publish"
	ActionPointsGrant   = "collab.points_grant"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
