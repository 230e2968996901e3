package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueRefresh flips stale unpaid statuses to overdue.
	TaskOverdueRefresh = "invoice:overdue_refresh"
	// TaskLedgerRecompute rebuilds derived invoice data.
	TaskLedgerRecompute = "invoice:recompute"
)

// OverdueRefreshPayload scopes the overdue sweep.
type OverdueRefreshPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewOverdueRefreshTask constructs the overdue refresh task.
func NewOverdueRefreshTask(payload OverdueRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueRefresh, data), nil
}

// LedgerRecomputePayload selects one invoice or, with zero, the whole ledger.
type LedgerRecomputePayload struct {
	InvoiceID int64 `json:"invoice_id,omitempty"`
}

// NewLedgerRecomputeTask constructs the recompute task.
func NewLedgerRecomputeTask(payload LedgerRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerRecompute, data), nil
}
