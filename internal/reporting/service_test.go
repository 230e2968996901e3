package reporting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

type memoryReportRepo struct {
	open         map[string][]OpenInvoiceRow
	due          []DueRow
	lines        []DeclarationLine
	numbers      []NumberRow
	declarations []VATDeclaration
	committed    map[int64]bool
	nextID       int64
}

func newMemoryReportRepo() *memoryReportRepo {
	return &memoryReportRepo{
		open:      make(map[string][]OpenInvoiceRow),
		committed: make(map[int64]bool),
	}
}

func (r *memoryReportRepo) OpenInvoices(_ context.Context, invoiceType string) ([]OpenInvoiceRow, error) {
	return r.open[invoiceType], nil
}

func (r *memoryReportRepo) OpenByDueDate(_ context.Context, from, to time.Time) ([]DueRow, error) {
	var out []DueRow
	for _, row := range r.due {
		if row.DueDate.Before(from) || row.DueDate.After(to) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memoryReportRepo) DeclarationLines(_ context.Context, _ Period) ([]DeclarationLine, error) {
	return r.lines, nil
}

func (r *memoryReportRepo) NumbersInWindow(_ context.Context, _ Period) ([]NumberRow, error) {
	return r.numbers, nil
}

func (r *memoryReportRepo) SaveDeclaration(_ context.Context, d *VATDeclaration) error {
	for _, existing := range r.declarations {
		if existing.PeriodStart.Equal(d.PeriodStart) && existing.Status == DeclarationCommitted {
			return shared.ErrConflict
		}
	}
	r.nextID++
	d.ID = r.nextID
	d.Status = DeclarationDraft
	d.CreatedAt = time.Now()
	r.declarations = append(r.declarations, *d)
	return nil
}

func (r *memoryReportRepo) CommitDeclaration(_ context.Context, id int64) error {
	for i := range r.declarations {
		if r.declarations[i].ID == id && r.declarations[i].Status == DeclarationDraft {
			r.declarations[i].Status = DeclarationCommitted
			return nil
		}
	}
	return shared.ErrConflict
}

func (r *memoryReportRepo) ListDeclarations(_ context.Context) ([]VATDeclaration, error) {
	return r.declarations, nil
}

type monthlyFrequency struct {
	freq        string
	penalty     bool
	penaltyRate decimal.Decimal
}

func (m monthlyFrequency) VATFrequency(context.Context) (string, error) {
	if m.freq == "" {
		return "monthly", nil
	}
	return m.freq, nil
}

func (m monthlyFrequency) PenaltyInfo(context.Context) (bool, decimal.Decimal, error) {
	return m.penalty, m.penaltyRate, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo *memoryReportRepo, today time.Time, freq string) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, NewCache(nil, 0), monthlyFrequency{freq: freq})
	svc.WithNow(func() time.Time { return today })
	return svc
}

func openRow(id int64, number, total, paid string, due time.Time) OpenInvoiceRow {
	return OpenInvoiceRow{
		ID:      id,
		Number:  number,
		DueDate: due,
		Total:   money.MustParse(total),
		Paid:    money.MustParse(paid),
	}
}

func TestReceivablesGradesReminderLevels(t *testing.T) {
	today := day(2025, time.June, 1)
	repo := newMemoryReportRepo()
	repo.open["issued"] = []OpenInvoiceRow{
		openRow(1, "FV202500001", "1000.00", "0", day(2025, time.June, 10)),
		openRow(2, "FV202500002", "1000.00", "0", day(2025, time.May, 25)),
		openRow(3, "FV202500003", "1000.00", "200.00", day(2025, time.May, 10)),
		openRow(4, "FV202500004", "1000.00", "0", day(2025, time.March, 1)),
		openRow(5, "FV202500005", "1000.00", "999.995", day(2025, time.May, 1)),
	}
	svc := newTestService(repo, today, "")

	items, err := svc.Receivables(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 4)

	require.Equal(t, ReminderLevel(0), items[0].ReminderLevel)
	require.Equal(t, 0, items[0].DaysOverdue)
	require.Equal(t, ReminderLevel(1), items[1].ReminderLevel)
	require.Equal(t, ReminderLevel(2), items[2].ReminderLevel)
	require.Equal(t, "800.00", items[2].Remaining.String())
	require.Equal(t, ReminderLevel(3), items[3].ReminderLevel)
	require.Equal(t, 92, items[3].DaysOverdue)
}

func TestReceivablesEchoPenaltyTermsWhenEnabled(t *testing.T) {
	today := day(2025, time.June, 1)
	repo := newMemoryReportRepo()
	repo.open["issued"] = []OpenInvoiceRow{
		openRow(1, "FV202500001", "1000.00", "0", day(2025, time.May, 1)),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	plain := NewService(logger, repo, NewCache(nil, 0), monthlyFrequency{})
	plain.WithNow(func() time.Time { return today })
	report, err := plain.ReceivablesWithTerms(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	require.Nil(t, report.Penalty)

	withPenalty := NewService(logger, repo, NewCache(nil, 0), monthlyFrequency{
		penalty:     true,
		penaltyRate: decimal.RequireFromString("0.05"),
	})
	withPenalty.WithNow(func() time.Time { return today })
	report, err = withPenalty.ReceivablesWithTerms(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Penalty)
	require.True(t, report.Penalty.Enabled)
	require.Equal(t, "0.05", report.Penalty.Rate.String())
}

func TestPayablesGradesPriority(t *testing.T) {
	today := day(2025, time.June, 1)
	repo := newMemoryReportRepo()
	repo.open["received"] = []OpenInvoiceRow{
		openRow(1, "PF202500001", "500.00", "0", day(2025, time.June, 5)),
		openRow(2, "PF202500002", "60000.00", "0", day(2025, time.September, 1)),
		openRow(3, "PF202500003", "500.00", "0", day(2025, time.June, 13)),
		openRow(4, "PF202500004", "500.00", "0", day(2025, time.June, 20)),
		openRow(5, "PF202500005", "500.00", "0", day(2025, time.September, 1)),
	}
	svc := newTestService(repo, today, "")

	items, err := svc.Payables(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 5)

	byNumber := make(map[string]PayableItem, len(items))
	for _, item := range items {
		byNumber[item.Number] = item
	}
	require.Equal(t, PriorityHigh, byNumber["PF202500001"].Priority)
	require.Equal(t, PriorityHigh, byNumber["PF202500002"].Priority)
	require.Equal(t, PriorityMedium, byNumber["PF202500003"].Priority)
	// 19 days out and small: outside the 14-day medium window.
	require.Equal(t, PriorityLow, byNumber["PF202500004"].Priority)
	require.Equal(t, PriorityLow, byNumber["PF202500005"].Priority)
}

func dueRow(invoiceType, total, paid string, due time.Time) DueRow {
	return DueRow{
		InvoiceType: invoiceType,
		DueDate:     due,
		Total:       money.MustParse(total),
		Paid:        money.MustParse(paid),
	}
}

func TestCashflowProjectsOpenInvoices(t *testing.T) {
	today := day(2025, time.June, 2)
	repo := newMemoryReportRepo()
	repo.due = []DueRow{
		dueRow("issued", "100.00", "0", today),
		dueRow("issued", "500.00", "0", day(2025, time.June, 7)),
		dueRow("received", "200.00", "0", day(2025, time.June, 12)),
		dueRow("issued", "350.00", "200.00", day(2025, time.June, 15)),
		// settled and out-of-horizon rows contribute nothing
		dueRow("issued", "100.00", "100.00", day(2025, time.June, 4)),
		dueRow("received", "900.00", "0", day(2025, time.July, 30)),
	}
	svc := newTestService(repo, today, "")

	buckets, err := svc.Cashflow(context.Background(), 28)
	require.NoError(t, err)
	require.Len(t, buckets, 4)

	require.Equal(t, today, buckets[0].WeekStart)
	require.Equal(t, "600.00", buckets[0].Income.String())
	require.Equal(t, "0.00", buckets[0].Expense.String())
	require.Equal(t, "600.00", buckets[0].Difference.String())
	require.Equal(t, "600.00", buckets[0].Cumulative.String())

	require.Equal(t, day(2025, time.June, 9), buckets[1].WeekStart)
	require.Equal(t, "150.00", buckets[1].Income.String())
	require.Equal(t, "200.00", buckets[1].Expense.String())
	require.Equal(t, "-50.00", buckets[1].Difference.String())
	require.Equal(t, "550.00", buckets[1].Cumulative.String())

	require.Equal(t, day(2025, time.June, 16), buckets[2].WeekStart)
	require.Equal(t, "0.00", buckets[2].Difference.String())
	require.Equal(t, "550.00", buckets[2].Cumulative.String())
	require.Equal(t, "550.00", buckets[3].Cumulative.String())
}

func TestCashflowIncludesDueInHorizonInvoice(t *testing.T) {
	today := day(2025, time.June, 2)
	repo := newMemoryReportRepo()
	repo.due = []DueRow{
		dueRow("issued", "500.00", "0", today.AddDate(0, 0, 5)),
	}
	svc := newTestService(repo, today, "")

	buckets, err := svc.Cashflow(context.Background(), 28)
	require.NoError(t, err)
	require.NotEmpty(t, buckets)
	require.Equal(t, "500.00", buckets[0].Income.String())
}

func TestDuplicatesGroupByNumber(t *testing.T) {
	repo := newMemoryReportRepo()
	repo.numbers = []NumberRow{
		{ID: 1, Number: "FV202500001"},
		{ID: 2, Number: "FV202500002"},
		{ID: 3, Number: "FV202500001"},
		{ID: 4, Number: "FV202500003"},
	}
	svc := newTestService(repo, day(2025, time.June, 15), "")

	groups, err := svc.Duplicates(context.Background(), MonthlyPeriod(day(2025, time.June, 15)))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "FV202500001", groups[0].Number)
	require.Equal(t, []int64{1, 3}, groups[0].IDs)
	require.Equal(t, 2, groups[0].Count)
}

func TestDeclarationOutputMinusInput(t *testing.T) {
	repo := newMemoryReportRepo()
	repo.lines = []DeclarationLine{
		{InvoiceType: "issued", Rate: decimal.NewFromInt(21), Base: money.MustParse("1000.00"), VAT: money.MustParse("210.00")},
		{InvoiceType: "issued", Rate: decimal.NewFromInt(12), Base: money.MustParse("300.00"), VAT: money.MustParse("36.00")},
		{InvoiceType: "received", Rate: decimal.NewFromInt(21), Base: money.MustParse("476.19"), VAT: money.MustParse("100.00")},
	}
	svc := newTestService(repo, day(2025, time.June, 15), "")

	d, err := svc.Declaration(context.Background(), MonthlyPeriod(day(2025, time.June, 15)))
	require.NoError(t, err)
	require.Equal(t, "246.00", d.OutputVAT.String())
	require.Equal(t, "100.00", d.InputVAT.String())
	require.Equal(t, "146.00", d.Result.String())
	require.Len(t, d.Lines, 3)
}

func TestDeclarationCreditNotesReduceOutput(t *testing.T) {
	repo := newMemoryReportRepo()
	repo.lines = []DeclarationLine{
		{InvoiceType: "issued", Rate: decimal.NewFromInt(21), Base: money.MustParse("1000.00"), VAT: money.MustParse("210.00")},
		{InvoiceType: "credit_note", Rate: decimal.NewFromInt(21), Base: money.MustParse("-100.00"), VAT: money.MustParse("-21.00")},
	}
	svc := newTestService(repo, day(2025, time.June, 15), "")

	d, err := svc.Declaration(context.Background(), MonthlyPeriod(day(2025, time.June, 15)))
	require.NoError(t, err)
	require.Equal(t, "189.00", d.OutputVAT.String())
	require.Equal(t, "189.00", d.Result.String())
}

func TestSaveAndCommitDeclaration(t *testing.T) {
	repo := newMemoryReportRepo()
	repo.lines = []DeclarationLine{
		{InvoiceType: "issued", Rate: decimal.NewFromInt(21), Base: money.MustParse("1000.00"), VAT: money.MustParse("210.00")},
	}
	svc := newTestService(repo, day(2025, time.June, 15), "")
	ctx := context.Background()

	d, err := svc.SaveDeclaration(ctx, MonthlyPeriod(day(2025, time.June, 15)))
	require.NoError(t, err)
	require.Equal(t, DeclarationDraft, d.Status)

	require.NoError(t, svc.CommitDeclaration(ctx, d.ID))
	list, err := svc.ListDeclarations(ctx)
	require.NoError(t, err)
	require.Equal(t, DeclarationCommitted, list[0].Status)

	// A committed period rejects a fresh snapshot.
	_, err = svc.SaveDeclaration(ctx, MonthlyPeriod(day(2025, time.June, 15)))
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDefaultPeriod(t *testing.T) {
	repo := newMemoryReportRepo()
	at := day(2025, time.May, 14)

	monthly := newTestService(repo, at, "monthly")
	p, err := monthly.DefaultPeriod(context.Background(), at)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.May, 1), p.Start)
	require.Equal(t, day(2025, time.May, 31), p.End)

	quarterly := newTestService(repo, at, "quarterly")
	p, err = quarterly.DefaultPeriod(context.Background(), at)
	require.NoError(t, err)
	require.Equal(t, day(2025, time.April, 1), p.Start)
	require.Equal(t, day(2025, time.June, 30), p.End)
}
