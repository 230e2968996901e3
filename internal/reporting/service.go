package reporting

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
)

// RepositoryPort defines the aggregate queries the service depends on.
type RepositoryPort interface {
	OpenInvoices(ctx context.Context, invoiceType string) ([]OpenInvoiceRow, error)
	OpenByDueDate(ctx context.Context, from, to time.Time) ([]DueRow, error)
	DeclarationLines(ctx context.Context, p Period) ([]DeclarationLine, error)
	NumbersInWindow(ctx context.Context, p Period) ([]NumberRow, error)
	SaveDeclaration(ctx context.Context, d *VATDeclaration) error
	CommitDeclaration(ctx context.Context, id int64) error
	ListDeclarations(ctx context.Context) ([]VATDeclaration, error)
}

// SettingsPort resolves the configured declaration frequency and the
// informational penalty terms.
type SettingsPort interface {
	VATFrequency(ctx context.Context) (string, error)
	PenaltyInfo(ctx context.Context) (enabled bool, rate decimal.Decimal, err error)
}

// Service coordinates period aggregation with the cache layer.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	cache    *Cache
	settings SettingsPort
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, cache *Cache, settings SettingsPort) *Service {
	return &Service{logger: logger, repo: repo, cache: cache, settings: settings, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// DefaultPeriod resolves the tax period containing the date from the
// configured frequency. Monthly unless quarterly is set.
func (s *Service) DefaultPeriod(ctx context.Context, at time.Time) (Period, error) {
	freq, err := s.settings.VATFrequency(ctx)
	if err != nil {
		return Period{}, err
	}
	if freq == "quarterly" {
		return QuarterlyPeriod(at), nil
	}
	return MonthlyPeriod(at), nil
}

// Receivables lists open issued invoices graded by reminder level.
func (s *Service) Receivables(ctx context.Context) ([]ReceivableItem, error) {
	asOf := truncateDay(s.now())

	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.OpenInvoices(ctx, "issued")
		if err != nil {
			return nil, err
		}
		items := make([]ReceivableItem, 0, len(rows))
		for _, row := range rows {
			remaining := row.Total.Sub(row.Paid)
			if !remaining.IsPositive() || remaining.WithinCentOf(money.Zero()) {
				continue
			}
			daysOverdue := daysBetween(row.DueDate, asOf)
			if daysOverdue < 0 {
				daysOverdue = 0
			}
			items = append(items, ReceivableItem{
				InvoiceID:     row.ID,
				Number:        row.Number,
				CustomerID:    row.CustomerID,
				Counterparty:  row.Counterparty,
				DueDate:       row.DueDate,
				Total:         row.Total,
				Paid:          row.Paid,
				Remaining:     remaining,
				DaysOverdue:   daysOverdue,
				ReminderLevel: GradeReceivable(daysOverdue),
			})
		}
		return items, nil
	}

	key, err := s.cache.BuildKey(ctx, keyReceivables(asOf))
	if err != nil {
		return nil, err
	}
	var items []ReceivableItem
	if err := s.cache.FetchJSON(ctx, key, &items, loader); err != nil {
		return nil, err
	}
	return items, nil
}

// PenaltyTerms echoes the informational late payment configuration. No
// penalty amounts are computed; clients render the terms themselves.
type PenaltyTerms struct {
	Enabled bool            `json:"enabled"`
	Rate    decimal.Decimal `json:"rate"`
}

// ReceivablesReport couples graded receivables with the penalty terms.
type ReceivablesReport struct {
	Items   []ReceivableItem `json:"receivables"`
	Penalty *PenaltyTerms    `json:"penalty,omitempty"`
}

// ReceivablesWithTerms lists receivables and, when the penalty setting is
// enabled, attaches the configured terms.
func (s *Service) ReceivablesWithTerms(ctx context.Context) (*ReceivablesReport, error) {
	items, err := s.Receivables(ctx)
	if err != nil {
		return nil, err
	}
	report := &ReceivablesReport{Items: items}
	enabled, rate, err := s.settings.PenaltyInfo(ctx)
	if err != nil {
		return nil, err
	}
	if enabled {
		report.Penalty = &PenaltyTerms{Enabled: true, Rate: rate}
	}
	return report, nil
}

// Payables lists open received invoices graded by payment priority.
func (s *Service) Payables(ctx context.Context) ([]PayableItem, error) {
	asOf := truncateDay(s.now())

	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.OpenInvoices(ctx, "received")
		if err != nil {
			return nil, err
		}
		items := make([]PayableItem, 0, len(rows))
		for _, row := range rows {
			remaining := row.Total.Sub(row.Paid)
			if !remaining.IsPositive() || remaining.WithinCentOf(money.Zero()) {
				continue
			}
			daysToDue := daysBetween(asOf, row.DueDate)
			items = append(items, PayableItem{
				InvoiceID:    row.ID,
				Number:       row.Number,
				Counterparty: row.Counterparty,
				DueDate:      row.DueDate,
				Total:        row.Total,
				Paid:         row.Paid,
				Remaining:    remaining,
				DaysToDue:    daysToDue,
				Priority:     GradePayable(daysToDue, remaining),
			})
		}
		return items, nil
	}

	key, err := s.cache.BuildKey(ctx, keyPayables(asOf))
	if err != nil {
		return nil, err
	}
	var items []PayableItem
	if err := s.cache.FetchJSON(ctx, key, &items, loader); err != nil {
		return nil, err
	}
	return items, nil
}

// defaultHorizonDays is the projection window when the caller names none.
const defaultHorizonDays = 84

// Cashflow projects open invoices over a horizon of days from today, split
// into week buckets starting today. Income is the remaining amount of
// issued invoices falling due inside the bucket, expense the same for
// received ones.
func (s *Service) Cashflow(ctx context.Context, horizonDays int) ([]CashflowBucket, error) {
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}
	today := truncateDay(s.now())
	end := today.AddDate(0, 0, horizonDays-1)

	loader := func(ctx context.Context) (interface{}, error) {
		rows, err := s.repo.OpenByDueDate(ctx, today, end)
		if err != nil {
			return nil, err
		}

		weeks := (horizonDays + 6) / 7
		buckets := make([]CashflowBucket, weeks)
		for i := range buckets {
			buckets[i] = CashflowBucket{
				WeekStart: today.AddDate(0, 0, 7*i),
				Income:    money.Zero(),
				Expense:   money.Zero(),
			}
		}

		for _, row := range rows {
			remaining := row.Total.Sub(row.Paid)
			if !remaining.IsPositive() {
				continue
			}
			idx := daysBetween(today, row.DueDate) / 7
			if idx < 0 || idx >= weeks {
				continue
			}
			if row.InvoiceType == "received" {
				buckets[idx].Expense = buckets[idx].Expense.Add(remaining)
			} else {
				buckets[idx].Income = buckets[idx].Income.Add(remaining)
			}
		}

		cumulative := money.Zero()
		for i := range buckets {
			buckets[i].Difference = buckets[i].Income.Sub(buckets[i].Expense)
			cumulative = cumulative.Add(buckets[i].Difference)
			buckets[i].Cumulative = cumulative
		}
		return buckets, nil
	}

	key, err := s.cache.BuildKey(ctx, keyCashflow(today, horizonDays))
	if err != nil {
		return nil, err
	}
	var buckets []CashflowBucket
	if err := s.cache.FetchJSON(ctx, key, &buckets, loader); err != nil {
		return nil, err
	}
	return buckets, nil
}

// Declaration computes the VAT declaration of a period. Output VAT sums
// issued invoices and credit notes, input VAT sums received ones.
func (s *Service) Declaration(ctx context.Context, p Period) (*VATDeclaration, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		lines, err := s.repo.DeclarationLines(ctx, p)
		if err != nil {
			return nil, err
		}

		d := &VATDeclaration{
			PeriodStart: p.Start,
			PeriodEnd:   p.End,
			OutputVAT:   money.Zero(),
			InputVAT:    money.Zero(),
			Lines:       lines,
		}
		for _, line := range lines {
			if line.InvoiceType == "received" {
				d.InputVAT = d.InputVAT.Add(line.VAT)
			} else {
				d.OutputVAT = d.OutputVAT.Add(line.VAT)
			}
		}
		d.Result = d.OutputVAT.Sub(d.InputVAT)
		return d, nil
	}

	key, err := s.cache.BuildKey(ctx, keyDeclaration(p))
	if err != nil {
		return nil, err
	}
	var d VATDeclaration
	if err := s.cache.FetchJSON(ctx, key, &d, loader); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDeclaration recomputes and snapshots the declaration as a draft.
func (s *Service) SaveDeclaration(ctx context.Context, p Period) (*VATDeclaration, error) {
	d, err := s.Declaration(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveDeclaration(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("vat declaration saved",
		slog.Time("period_start", d.PeriodStart),
		slog.String("result", d.Result.String()))
	return d, nil
}

// CommitDeclaration finalizes a draft declaration. Committed periods then
// guard invoice deletion and flag cancellations.
func (s *Service) CommitDeclaration(ctx context.Context, id int64) error {
	if err := s.repo.CommitDeclaration(ctx, id); err != nil {
		return err
	}
	s.logger.Info("vat declaration committed", slog.Int64("id", id))
	return s.cache.Bump(ctx)
}

// ListDeclarations returns stored declarations.
func (s *Service) ListDeclarations(ctx context.Context) ([]VATDeclaration, error) {
	return s.repo.ListDeclarations(ctx)
}

// Duplicates groups invoices in the window by number and reports groups
// with more than one member. The database enforces uniqueness for new rows;
// the check still catches collisions slipped in through imports.
func (s *Service) Duplicates(ctx context.Context, p Period) ([]DuplicateGroup, error) {
	rows, err := s.repo.NumbersInWindow(ctx, p)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string][]int64)
	var order []string
	for _, row := range rows {
		if _, ok := byNumber[row.Number]; !ok {
			order = append(order, row.Number)
		}
		byNumber[row.Number] = append(byNumber[row.Number], row.ID)
	}

	var groups []DuplicateGroup
	for _, number := range order {
		ids := byNumber[number]
		if len(ids) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{Number: number, IDs: ids, Count: len(ids)})
	}
	return groups, nil
}

// Overview is the combined dashboard payload.
type Overview struct {
	Receivables []ReceivableItem `json:"receivables"`
	Payables    []PayableItem    `json:"payables"`
	Cashflow    []CashflowBucket `json:"cashflow"`
}

// Dashboard fans the three period views out in parallel.
func (s *Service) Dashboard(ctx context.Context, horizonDays int) (*Overview, error) {
	var overview Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.Receivables(ctx)
		if err != nil {
			return err
		}
		overview.Receivables = items
		return nil
	})
	g.Go(func() error {
		items, err := s.Payables(ctx)
		if err != nil {
			return err
		}
		overview.Payables = items
		return nil
	})
	g.Go(func() error {
		buckets, err := s.Cashflow(ctx, horizonDays)
		if err != nil {
			return err
		}
		overview.Cashflow = buckets
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}

// InvalidateCache bumps the shared cache version after ledger writes.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// LedgerChanged drops cached aggregates after a ledger mutation. Satisfies
// the notifier ports of the invoicing and payments services.
func (s *Service) LedgerChanged(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump after ledger change", slog.Any("error", err))
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(truncateDay(to).Sub(truncateDay(from)).Hours() / 24)
}
