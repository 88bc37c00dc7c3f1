package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/docbridge/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one structured record per event.
// Failures log at warn level, everything else at debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_start", "turn_id", e.TurnID, "document_id", e.DocumentID)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "turn_end", "turn_id", e.TurnID, "document_id", e.DocumentID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "turn_end", "turn_id", e.TurnID, "document_id", e.DocumentID, "duration", e.Duration)
		},
		OnFetch: func(ctx context.Context, e *domain.SnapshotEvent) {
			logSnapshot(ctx, logger, e)
		},
		OnFlush: func(ctx context.Context, e *domain.SnapshotEvent) {
			logSnapshot(ctx, logger, e)
		},
		OnDelete: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_delete", "path", e.Path, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "node_delete", "path", e.Path)
		},
	}
}

func logSnapshot(ctx context.Context, logger *slog.Logger, e *domain.SnapshotEvent) {
	if e.Err != nil {
		logger.WarnContext(ctx, "snapshot_"+string(e.Type), "items", e.Items, "err", e.Err)
		return
	}
	logger.DebugContext(ctx, "snapshot_"+string(e.Type), "items", e.Items)
}
