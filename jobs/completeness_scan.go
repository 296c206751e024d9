package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ScanCompleteness recounts filled required fields per project so the
// dashboard query stays cheap. The counters live in a summary table the
// scan rebuilds in place.
func ScanCompleteness(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	tag, err := pool.Exec(ctx, `
		INSERT INTO sample_completeness_summary (project_id, sample_count, field_value_count, scanned_at)
		SELECT s.project_id, COUNT(DISTINCT s.id), COUNT(fv.id), NOW()
		FROM samples s
		LEFT JOIN sample_field_values fv ON fv.sample_id = s.id
		GROUP BY s.project_id
		ON CONFLICT (project_id)
		DO UPDATE SET sample_count = EXCLUDED.sample_count,
			field_value_count = EXCLUDED.field_value_count,
			scanned_at = EXCLUDED.scanned_at`)
	if err != nil {
		if logger != nil {
			logger.Error("completeness scan", slog.Any("error", err))
		}
		return err
	}
	if logger != nil {
		logger.Info("completeness scan done", slog.Int64("projects", tag.RowsAffected()))
	}
	return nil
}
