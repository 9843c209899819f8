package bootstrap

import "context"

type AuditLog struct {
	Action  string
	ActorID string
	Message string
	Meta    map[string]any
}

// AuditLogger records security relevant events apart from regular logs.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditLog)
}
