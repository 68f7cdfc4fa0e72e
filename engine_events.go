package authcore

import (
	"context"

	"go.uber.org/zap"
)

// Event names emitted by the engine.
const (
	EventUserCreated            = "user.created"
	EventMFAEnabled             = "user.mfa.enabled"
	EventMFADisabled            = "user.mfa.disabled"
	EventLogout                 = "user.logout"
	EventBackupCodesRegenerated = "user.backup_codes.regenerated"
)

func (e *Engine) emit(ctx context.Context, name, userID string, payload map[string]string) {
	e.events.Emit(ctx, Event{Name: name, UserID: userID, OccurredAt: e.now().UTC(), Payload: payload})
}

func (e *Engine) warn(msg, userID string, err error) {
	fields := []zap.Field{zap.Error(err)}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	e.logger.Warn(msg, fields...)
}
