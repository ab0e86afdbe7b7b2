package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldRole     = "role"

	// Websocket
	FieldClientID = "client_id"

	// Domain entities
	FieldBidID          = "bid_id"
	FieldTargetType     = "target_type"
	FieldTargetID       = "target_id"
	FieldNotificationID = "notification_id"
	FieldMessageID      = "message_id"
	FieldReceiverID     = "receiver_id"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
