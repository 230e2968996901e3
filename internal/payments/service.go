package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// RepositoryPort defines the transactional payment operations.
type RepositoryPort interface {
	Record(ctx context.Context, p *Payment, derive StatusFn) (money.Money, invoicing.Status, error)
	Delete(ctx context.Context, paymentID int64, derive StatusFn) (int64, money.Money, invoicing.Status, error)
	Recalculate(ctx context.Context, invoiceID int64, derive StatusFn) (money.Money, invoicing.Status, error)
	ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error)
}

// NotifierPort is signalled after successful payment mutations.
type NotifierPort interface {
	LedgerChanged(ctx context.Context)
}

// Service handles payment business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	notifier NotifierPort
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithNotifier registers the mutation listener.
func (s *Service) WithNotifier(n NotifierPort) {
	s.notifier = n
}

func (s *Service) notifyChanged(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.LedgerChanged(ctx)
	}
}

func (s *Service) derive() StatusFn {
	today := s.now()
	return func(paid, total money.Money, dueDate time.Time, cancelled bool) invoicing.Status {
		return invoicing.DeriveStatus(paid, total, dueDate, today, cancelled)
	}
}

// Record applies a payment to an invoice. Overpayment is allowed and lands
// on the paid status.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Result, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("payments: amount %s must be positive: %w", in.Amount, shared.ErrInvalidAmount)
	}

	paymentDate := s.now()
	if in.PaymentDate != nil {
		paymentDate = *in.PaymentDate
	}

	p := &Payment{
		InvoiceID:   in.InvoiceID,
		Amount:      in.Amount,
		PaymentDate: paymentDate,
		Method:      in.Method,
		Note:        in.Note,
		CreatedBy:   in.CreatedBy,
	}
	paid, status, err := s.repo.Record(ctx, p, s.derive())
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		slog.Int64("invoice_id", p.InvoiceID),
		slog.String("amount", p.Amount.String()),
		slog.String("status", string(status)))
	s.notifyChanged(ctx)
	return &Result{Payment: p, InvoiceID: p.InvoiceID, PaidAmount: paid, Status: status}, nil
}

// Delete removes a payment and restores the derived invoice status.
func (s *Service) Delete(ctx context.Context, paymentID int64) (*Result, error) {
	invoiceID, paid, status, err := s.repo.Delete(ctx, paymentID, s.derive())
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment deleted",
		slog.Int64("payment_id", paymentID),
		slog.Int64("invoice_id", invoiceID),
		slog.String("status", string(status)))
	s.notifyChanged(ctx)
	return &Result{InvoiceID: invoiceID, PaidAmount: paid, Status: status}, nil
}

// Recalculate rebuilds one invoice's paid amount and status from its
// payments. Used by the recompute service and the overdue refresh job.
func (s *Service) Recalculate(ctx context.Context, invoiceID int64) (*Result, error) {
	paid, status, err := s.repo.Recalculate(ctx, invoiceID, s.derive())
	if err != nil {
		return nil, err
	}
	s.notifyChanged(ctx)
	return &Result{InvoiceID: invoiceID, PaidAmount: paid, Status: status}, nil
}

// ListForInvoice returns the payments of one invoice.
func (s *Service) ListForInvoice(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListForInvoice(ctx, invoiceID)
}
