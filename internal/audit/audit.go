package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

// Audit actions for messenger-service.
const (
	ActionCreateConversation = "conversation.create"
	ActionSendMessage        = "message.send"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, conversationID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Int64(log.FieldConversationID, conversationID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, conversationID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Int64(log.FieldConversationID, conversationID).
		Str(FieldDetail, detail).
		Msg(msg)
}
