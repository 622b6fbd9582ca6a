package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogEntry writes a committed entry to the structured log as a secondary trail.
func LogEntry(ctx context.Context, logger *zap.Logger, e Entry) {
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("type", "audit"),
		zap.String("audit_id", e.ID),
		zap.String("actor_id", e.ActorID),
		zap.String("action", string(e.Action)),
		zap.String("table_name", e.TableName),
		zap.Time("created_at", e.CreatedAt),
	}
	if e.RecordID != "" {
		fields = append(fields, zap.String("record_id", e.RecordID))
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if e.ClientAddress != "" {
		fields = append(fields, zap.String("client_address", e.ClientAddress))
	}
	logger.Info("audit entry recorded", fields...)
}
