package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/quorum/pkg/domain"
)

// LogHooks logs every node transition and oracle round trip at Debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "enter node", "instance_id", e.InstanceID, "node_id", e.NodeID, "type", e.NodeType, "path", e.Path)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "leave node (error)", "instance_id", e.InstanceID, "node_id", e.NodeID, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "leave node", "instance_id", e.InstanceID, "node_id", e.NodeID)
		},
		OnOracleCall: func(ctx context.Context, e *domain.OracleEvent) {
			logger.DebugContext(ctx, "oracle call", "instance_id", e.InstanceID, "node_id", e.NodeID, "provider", e.Provider)
		},
		OnOracleReturn: func(ctx context.Context, e *domain.OracleEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "oracle return (error)", "node_id", e.NodeID, "duration", e.Duration, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "oracle return", "node_id", e.NodeID, "duration", e.Duration, "level", e.Assessment.Level)
		},
	}
}
