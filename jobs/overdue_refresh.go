package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OverdueRefreshJob keeps the persisted status cache aligned with the
// calendar. Readers re-derive statuses anyway; the sweep keeps list filters
// and reports on the persisted column honest.
type OverdueRefreshJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewOverdueRefreshJob builds the job.
func NewOverdueRefreshJob(pool *pgxpool.Pool, logger *slog.Logger) *OverdueRefreshJob {
	return &OverdueRefreshJob{pool: pool, logger: logger}
}

// Handle processes TaskOverdueRefresh tasks.
func (j *OverdueRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverdueRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := time.Now()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}
	return j.Run(ctx, asOf)
}

// Run executes the sweep directly.
func (j *OverdueRefreshJob) Run(ctx context.Context, asOf time.Time) error {
	if j.pool == nil {
		return nil
	}
	tag, err := j.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'overdue', updated_at = now()
		WHERE status = 'unpaid' AND due_date < $1`, asOf)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("overdue refresh", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("overdue refresh finished",
			slog.Int64("updated", tag.RowsAffected()),
			slog.Time("as_of", asOf))
	}
	return nil
}
