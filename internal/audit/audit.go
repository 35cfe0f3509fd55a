package audit

import (
	"context"

	"github.com/devboard/devboard/pkg/log"
)

// Audit actions.
const (
	ActionProjectCreate = "project.create"
	ActionMemberAdd     = "member.add"
	ActionTaskCreate    = "task.create"
	ActionMessageSend   = "message.send"
	ActionCallJoin      = "call.join"
	ActionCallLeave     = "call.leave"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID uint, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID).
		Msg(msg)
}
