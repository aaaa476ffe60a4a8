package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Messaging
	FieldUserID         = "user_id"
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"

	// Storage
	FieldKeyspace = "keyspace"
	FieldAttempt  = "attempt"
	FieldBackoff  = "backoff_ms"

	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
