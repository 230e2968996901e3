package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/motoservis-erp/motoservis-erp/internal/recompute"
)

// LedgerRecomputeJob runs the derived-data rebuild in the background.
type LedgerRecomputeJob struct {
	service *recompute.Service
	logger  *slog.Logger
}

// NewLedgerRecomputeJob builds the job.
func NewLedgerRecomputeJob(service *recompute.Service, logger *slog.Logger) *LedgerRecomputeJob {
	return &LedgerRecomputeJob{service: service, logger: logger}
}

// Handle processes TaskLedgerRecompute tasks.
func (j *LedgerRecomputeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerRecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if payload.InvoiceID > 0 {
		return j.service.Invoice(ctx, payload.InvoiceID)
	}

	report, err := j.service.All(ctx)
	if err != nil {
		return err
	}
	if j.logger != nil && len(report.Failures) > 0 {
		j.logger.Warn("ledger recompute finished with failures",
			slog.Int("processed", report.Processed),
			slog.Int("failed", len(report.Failures)))
	}
	return nil
}
