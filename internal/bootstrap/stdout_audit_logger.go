package bootstrap

import (
	"context"
	"time"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/contextutil"

	"go.uber.org/zap"
)

// StdoutAuditLogger writes audit entries to a dedicated named zap logger.
type StdoutAuditLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewStdoutAuditLogger(logger ...*zap.Logger) *StdoutAuditLogger {
	l := zap.L().Named("audit")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("audit")
	}
	return &StdoutAuditLogger{
		logger: l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *StdoutAuditLogger) Log(ctx context.Context, entry AuditLog) {
	fields := []zap.Field{
		zap.String("timestamp", l.now().Format(time.RFC3339)),
		zap.String("action", entry.Action),
		zap.String("message", entry.Message),
		zap.Any("meta", entry.Meta),
	}
	if entry.ActorID != "" {
		fields = append(fields, zap.String("actor_id", entry.ActorID))
	}
	md := contextutil.ExtractMetadata(ctx)
	if md.RequestID != "" {
		fields = append(fields, zap.String("request_id", md.RequestID))
	}
	if md.UserID != "" {
		fields = append(fields, zap.String("user_id", md.UserID))
	}
	l.logger.Info("audit event", fields...)
}
