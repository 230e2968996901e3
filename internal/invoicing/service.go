package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
	"github.com/motoservis-erp/motoservis-erp/internal/vat"
)

// RepositoryPort defines data access for the invoice ledger.
type RepositoryPort interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, f ListFilter) ([]Invoice, int, error)
	Update(ctx context.Context, inv *Invoice, replaceLines bool) error
	SetStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	PaymentCount(ctx context.Context, id int64) (int, error)
	PaymentsTotal(ctx context.Context, id int64) (money.Money, error)
	CommittedDeclarationCovers(ctx context.Context, taxDate time.Time) (bool, error)
}

// DefaultsPort supplies the settings-driven defaults of the create path.
type DefaultsPort interface {
	DefaultDueDays(ctx context.Context) (int, error)
	DefaultPaymentMethod(ctx context.Context) (string, error)
	DefaultVATRate(ctx context.Context) (decimal.Decimal, error)
}

// NotifierPort is signalled after successful ledger mutations. The reporting
// cache implements it to drop stale aggregates.
type NotifierPort interface {
	LedgerChanged(ctx context.Context)
}

// Service handles invoice ledger business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	opts     DefaultsPort
	notifier NotifierPort
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, opts DefaultsPort) *Service {
	return &Service{logger: logger, repo: repo, opts: opts, now: time.Now}
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

// Create validates a draft, fills defaults, computes totals and persists the
// invoice. The number is allocated inside the insert transaction when absent.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
	if err := ValidateCreateInput(in); err != nil {
		return nil, err
	}

	dueDate, err := s.resolveDueDate(ctx, in.IssueDate, in.DueDate)
	if err != nil {
		return nil, err
	}
	taxDate := in.IssueDate
	if in.TaxDate != nil {
		taxDate = *in.TaxDate
	}
	method := in.PaymentMethod
	if method == "" {
		if method, err = s.opts.DefaultPaymentMethod(ctx); err != nil {
			return nil, err
		}
	}

	lines, totals, err := s.computeLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		Number:          in.Number,
		Type:            in.Type,
		CustomerID:      in.CustomerID,
		SupplierName:    in.SupplierName,
		OrderID:         in.OrderID,
		CreditNoteFor:   in.CreditNoteFor,
		IssueDate:       in.IssueDate,
		DueDate:         dueDate,
		TaxDate:         taxDate,
		PaymentMethod:   method,
		VariableSymbol:  in.VariableSymbol,
		ConstantSymbol:  in.ConstantSymbol,
		SpecificSymbol:  in.SpecificSymbol,
		Note:            in.Note,
		TotalWithoutVAT: totals.WithoutVAT,
		TotalVAT:        totals.VAT,
		TotalWithVAT:    totals.WithVAT,
		PaidAmount:      money.Zero(),
		CreatedBy:       in.CreatedBy,
		Lines:           lines,
	}
	inv.Status = DeriveStatus(inv.PaidAmount, inv.TotalWithVAT, inv.DueDate, s.now(), false)

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		slog.String("number", inv.Number),
		slog.String("type", string(inv.Type)),
		slog.String("total", inv.TotalWithVAT.String()))
	s.notifyChanged(ctx)
	return inv, nil
}

// Get loads an invoice, re-deriving the effective status on read.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Status = inv.EffectiveStatus(s.now())
	return inv, nil
}

// List returns filtered invoices with re-derived statuses and pagination.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Invoice, shared.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	today := s.now()
	for i := range invoices {
		invoices[i].Status = invoices[i].EffectiveStatus(today)
	}
	return invoices, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// Update applies a partial patch. Cancelled invoices reject every mutation
// except Uncancel; type, number and payments are immutable here.
func (s *Service) Update(ctx context.Context, id int64, patch UpdateInput) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Cancelled() {
		return nil, fmt.Errorf("invoicing: invoice %s: %w", inv.Number, shared.ErrInvoiceCancelled)
	}

	applyHeaderPatch(inv, patch)
	if err := validateDates(inv.IssueDate, inv.DueDate); err != nil {
		return nil, err
	}

	replaceLines := patch.Lines != nil
	if replaceLines {
		if err := validateLines(inv.Type, *patch.Lines); err != nil {
			return nil, err
		}
		lines, totals, err := s.computeLines(ctx, *patch.Lines)
		if err != nil {
			return nil, err
		}
		for i := range lines {
			lines[i].InvoiceID = inv.ID
		}
		inv.Lines = lines
		inv.TotalWithoutVAT = totals.WithoutVAT
		inv.TotalVAT = totals.VAT
		inv.TotalWithVAT = totals.WithVAT
	}

	// paid_amount is re-read from source of truth, never trusted from the row
	if inv.PaidAmount, err = s.repo.PaymentsTotal(ctx, id); err != nil {
		return nil, err
	}
	inv.Status = DeriveStatus(inv.PaidAmount, inv.TotalWithVAT, inv.DueDate, s.now(), false)

	if err := s.repo.Update(ctx, inv, replaceLines); err != nil {
		return nil, err
	}
	s.notifyChanged(ctx)
	return inv, nil
}

// Cancel marks the invoice cancelled. Cancelling an invoice already covered
// by a committed VAT declaration is allowed but flagged as a
// post-declaration adjustment.
func (s *Service) Cancel(ctx context.Context, id int64) (*CancelResult, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Cancelled() {
		return &CancelResult{Invoice: inv}, nil
	}

	covered, err := s.repo.CommittedDeclarationCovers(ctx, inv.TaxDate)
	if err != nil {
		return nil, err
	}
	if covered {
		s.logger.Warn("cancelling invoice inside a committed declaration period",
			slog.String("number", inv.Number),
			slog.Time("tax_date", inv.TaxDate))
	}

	if err := s.repo.SetStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	inv.Status = StatusCancelled
	s.notifyChanged(ctx)
	return &CancelResult{Invoice: inv, PostDeclarationAdjustment: covered}, nil
}

// Uncancel restores a cancelled invoice to its derived status.
func (s *Service) Uncancel(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Cancelled() {
		return inv, nil
	}

	if inv.PaidAmount, err = s.repo.PaymentsTotal(ctx, id); err != nil {
		return nil, err
	}
	status := DeriveStatus(inv.PaidAmount, inv.TotalWithVAT, inv.DueDate, s.now(), false)
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	inv.Status = status
	s.notifyChanged(ctx)
	return inv, nil
}

// Delete removes an invoice that has no payments and is not covered by a
// committed declaration period.
func (s *Service) Delete(ctx context.Context, id int64) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.PaymentCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("invoicing: invoice %s has %d payments: %w", inv.Number, count, shared.ErrInvoiceReferenced)
	}

	covered, err := s.repo.CommittedDeclarationCovers(ctx, inv.TaxDate)
	if err != nil {
		return err
	}
	if covered {
		return fmt.Errorf("invoicing: invoice %s is covered by a committed declaration: %w", inv.Number, shared.ErrInvoiceReferenced)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifyChanged(ctx)
	return nil
}

// VATSummary returns the rate-partitioned summary of an invoice's lines.
func (s *Service) VATSummary(ctx context.Context, id int64) ([]vat.RateGroup, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rated := make([]vat.RatedLine, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		rated = append(rated, vat.RatedLine{
			Rate:       line.VATRate,
			WithoutVAT: line.TotalWithoutVAT,
			VAT:        line.TotalVAT,
		})
	}
	return vat.Summary(rated), nil
}

func (s *Service) resolveDueDate(ctx context.Context, issue time.Time, due *time.Time) (time.Time, error) {
	if due != nil {
		return *due, nil
	}
	days, err := s.opts.DefaultDueDays(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return issue.AddDate(0, 0, days), nil
}

func (s *Service) computeLines(ctx context.Context, inputs []LineInput) ([]Line, vat.LineTotals, error) {
	var defaultRate *decimal.Decimal
	lines := make([]Line, 0, len(inputs))
	rated := make([]vat.RatedLine, 0, len(inputs))

	for i, in := range inputs {
		rate := in.VATRate
		if rate == nil {
			if defaultRate == nil {
				r, err := s.opts.DefaultVATRate(ctx)
				if err != nil {
					return nil, vat.LineTotals{}, err
				}
				defaultRate = &r
			}
			rate = defaultRate
		}

		totals, err := vat.ComputeLine(in.Quantity, in.UnitPrice, *rate)
		if err != nil {
			return nil, vat.LineTotals{}, fmt.Errorf("invoicing: line %d: %w", i+1, err)
		}

		lines = append(lines, Line{
			Name:            in.Name,
			Quantity:        in.Quantity,
			Unit:            in.Unit,
			UnitPrice:       in.UnitPrice,
			VATRate:         *rate,
			TotalWithoutVAT: totals.WithoutVAT,
			TotalVAT:        totals.VAT,
			TotalWithVAT:    totals.WithVAT,
			WarehouseItemID: in.WarehouseItemID,
		})
		rated = append(rated, vat.RatedLine{Rate: *rate, WithoutVAT: totals.WithoutVAT, VAT: totals.VAT})
	}

	return lines, vat.Totals(rated), nil
}

func applyHeaderPatch(inv *Invoice, patch UpdateInput) {
	if patch.CustomerID != nil {
		inv.CustomerID = patch.CustomerID
	}
	if patch.SupplierName != nil {
		inv.SupplierName = *patch.SupplierName
	}
	if patch.OrderID != nil {
		inv.OrderID = patch.OrderID
	}
	if patch.IssueDate != nil {
		inv.IssueDate = *patch.IssueDate
	}
	if patch.DueDate != nil {
		inv.DueDate = *patch.DueDate
	}
	if patch.TaxDate != nil {
		inv.TaxDate = *patch.TaxDate
	}
	if patch.PaymentMethod != nil {
		inv.PaymentMethod = *patch.PaymentMethod
	}
	if patch.VariableSymbol != nil {
		inv.VariableSymbol = *patch.VariableSymbol
	}
	if patch.ConstantSymbol != nil {
		inv.ConstantSymbol = *patch.ConstantSymbol
	}
	if patch.SpecificSymbol != nil {
		inv.SpecificSymbol = *patch.SpecificSymbol
	}
	if patch.Note != nil {
		inv.Note = *patch.Note
	}
}
