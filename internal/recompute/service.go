// Package recompute rebuilds derived invoice data from its sources of
// truth: line totals from quantity, price and rate; invoice totals from the
// lines; paid amount and status from the payments. Idempotent, safe to run
// repeatedly.
package recompute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/payments"
	"github.com/motoservis-erp/motoservis-erp/internal/vat"
)

// LedgerPort is the slice of the invoice repository the rebuild needs.
type LedgerPort interface {
	ListIDs(ctx context.Context) ([]int64, error)
	Get(ctx context.Context, id int64) (*invoicing.Invoice, error)
	Update(ctx context.Context, inv *invoicing.Invoice, replaceLines bool) error
}

// PaymentsPort rebuilds paid_amount and status from the payment sum.
type PaymentsPort interface {
	Recalculate(ctx context.Context, invoiceID int64) (*payments.Result, error)
}

// Failure records one invoice the sweep could not rebuild.
type Failure struct {
	InvoiceID int64  `json:"invoice_id"`
	Error     string `json:"error"`
}

// Report summarizes a recompute run.
type Report struct {
	Processed int       `json:"processed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Service handles derived-data rebuilds.
type Service struct {
	logger   *slog.Logger
	ledger   LedgerPort
	payments PaymentsPort
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, ledger LedgerPort, payments PaymentsPort) *Service {
	return &Service{logger: logger, ledger: ledger, payments: payments}
}

// Invoice rebuilds one invoice.
func (s *Service) Invoice(ctx context.Context, id int64) error {
	inv, err := s.ledger.Get(ctx, id)
	if err != nil {
		return err
	}

	rated := make([]vat.RatedLine, 0, len(inv.Lines))
	for i := range inv.Lines {
		line := &inv.Lines[i]
		totals, err := vat.ComputeLine(line.Quantity, line.UnitPrice, line.VATRate)
		if err != nil {
			return fmt.Errorf("recompute: invoice %d line %d: %w", id, i+1, err)
		}
		line.TotalWithoutVAT = totals.WithoutVAT
		line.TotalVAT = totals.VAT
		line.TotalWithVAT = totals.WithVAT
		rated = append(rated, vat.RatedLine{Rate: line.VATRate, WithoutVAT: totals.WithoutVAT, VAT: totals.VAT})
	}

	totals := vat.Totals(rated)
	inv.TotalWithoutVAT = totals.WithoutVAT
	inv.TotalVAT = totals.VAT
	inv.TotalWithVAT = totals.WithVAT

	if err := s.ledger.Update(ctx, inv, true); err != nil {
		return err
	}

	// Paid amount and status follow from the payments, after the totals
	// are in place.
	if _, err := s.payments.Recalculate(ctx, id); err != nil {
		return err
	}
	return nil
}

// All sweeps the whole ledger. Failures are collected per invoice; one bad
// row never stops the run.
func (s *Service) All(ctx context.Context) (*Report, error) {
	ids, err := s.ledger.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.Invoice(ctx, id); err != nil {
			s.logger.Error("recompute invoice", slog.Any("error", err), slog.Int64("invoice_id", id))
			report.Failures = append(report.Failures, Failure{InvoiceID: id, Error: err.Error()})
			continue
		}
		report.Processed++
	}

	s.logger.Info("recompute sweep finished",
		slog.Int("processed", report.Processed),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}
