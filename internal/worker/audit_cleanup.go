package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AuditCleaner deletes audit entries created before a cutoff.
type AuditCleaner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type AuditCleanupWorker struct {
	cleaner         AuditCleaner
	retentionDays   int
	cleanupInterval time.Duration
	now             func() time.Time
	log             zerolog.Logger
}

func NewAuditCleanupWorker(cleaner AuditCleaner, retentionDays int, cleanupInterval time.Duration, log zerolog.Logger) *AuditCleanupWorker {
	if cleanupInterval <= 0 {
		cleanupInterval = 24 * time.Hour
	}
	return &AuditCleanupWorker{
		cleaner:         cleaner,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		log:             log.With().Str("worker", "audit_cleanup").Logger(),
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.log.Error().Err(err).Msg("audit cleanup failed")
			}
		}
	}
}

// Cleanup removes entries older than the retention period. A non-positive
// retention keeps everything.
func (w *AuditCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	if w.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.cleaner.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.log.Info().Int64("rows", rows).Time("cutoff", cutoff).Msg("cleaned up audit logs")
	return rows, nil
}
