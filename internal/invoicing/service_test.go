package invoicing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

type memoryInvoiceRepo struct {
	mu        sync.Mutex
	nextID    int64
	seq       int
	invoices  map[int64]*Invoice
	payments  map[int64][]money.Money
	committed bool
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: make(map[int64]*Invoice),
		payments: make(map[int64][]money.Money),
	}
}

func (r *memoryInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	inv.ID = r.nextID
	if inv.Number == "" {
		r.seq++
		inv.Number = fmt.Sprintf("FV2025%05d", r.seq)
	}
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
	}
	stored := *inv
	stored.Lines = append([]Line(nil), inv.Lines...)
	r.invoices[inv.ID] = &stored
	return nil
}

func (r *memoryInvoiceRepo) Get(_ context.Context, id int64) (*Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	inv := *stored
	inv.Lines = append([]Line(nil), stored.Lines...)
	return &inv, nil
}

func (r *memoryInvoiceRepo) List(_ context.Context, f ListFilter) ([]Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if f.Type != "" && inv.Type != f.Type {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (r *memoryInvoiceRepo) Update(_ context.Context, inv *Invoice, replaceLines bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("invoice %d: %w", inv.ID, shared.ErrUnknownInvoice)
	}
	updated := *inv
	if replaceLines {
		updated.Lines = append([]Line(nil), inv.Lines...)
	} else {
		updated.Lines = stored.Lines
	}
	r.invoices[inv.ID] = &updated
	return nil
}

func (r *memoryInvoiceRepo) SetStatus(_ context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	stored.Status = status
	return nil
}

func (r *memoryInvoiceRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return fmt.Errorf("invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	delete(r.invoices, id)
	return nil
}

func (r *memoryInvoiceRepo) PaymentCount(_ context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments[id]), nil
}

func (r *memoryInvoiceRepo) PaymentsTotal(_ context.Context, id int64) (money.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return money.Sum(r.payments[id]...), nil
}

func (r *memoryInvoiceRepo) CommittedDeclarationCovers(_ context.Context, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed, nil
}

type staticDefaults struct{}

func (staticDefaults) DefaultDueDays(context.Context) (int, error) { return 14, nil }
func (staticDefaults) DefaultPaymentMethod(context.Context) (string, error) {
	return "bank_transfer", nil
}
func (staticDefaults) DefaultVATRate(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(21), nil
}

func newTestService(repo *memoryInvoiceRepo, today time.Time) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, staticDefaults{})
	svc.WithNow(func() time.Time { return today })
	return svc
}

func issuedDraft() CreateInput {
	customer := int64(7)
	return CreateInput{
		Type:       TypeIssued,
		CustomerID: &customer,
		IssueDate:  day(2025, time.March, 1),
		Lines: []LineInput{
			{Name: "Brake pads", Quantity: decimal.NewFromInt(2), UnitPrice: money.MustParse("500.00")},
		},
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))

	inv, err := svc.Create(context.Background(), issuedDraft())
	require.NoError(t, err)

	require.NotEmpty(t, inv.Number)
	require.Equal(t, day(2025, time.March, 15), inv.DueDate)
	require.Equal(t, day(2025, time.March, 1), inv.TaxDate)
	require.Equal(t, "bank_transfer", inv.PaymentMethod)
	require.Equal(t, "1000.00", inv.TotalWithoutVAT.String())
	require.Equal(t, "210.00", inv.TotalVAT.String())
	require.Equal(t, "1210.00", inv.TotalWithVAT.String())
	require.Equal(t, StatusUnpaid, inv.Status)
	require.Equal(t, "21", inv.Lines[0].VATRate.String())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	noLines := issuedDraft()
	noLines.Lines = nil
	_, err := svc.Create(ctx, noLines)
	require.ErrorIs(t, err, shared.ErrValidation)

	noCustomer := issuedDraft()
	noCustomer.CustomerID = nil
	_, err = svc.Create(ctx, noCustomer)
	require.ErrorIs(t, err, shared.ErrValidation)

	badDates := issuedDraft()
	due := day(2025, time.February, 1)
	badDates.DueDate = &due
	_, err = svc.Create(ctx, badDates)
	require.ErrorIs(t, err, shared.ErrValidation)

	negativeQty := issuedDraft()
	negativeQty.Lines[0].Quantity = decimal.NewFromInt(-1)
	_, err = svc.Create(ctx, negativeQty)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreditNoteAllowsNegativeQuantity(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))

	in := issuedDraft()
	in.Type = TypeCreditNote
	in.Lines[0].Quantity = decimal.NewFromInt(-2)

	inv, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "-1000.00", inv.TotalWithoutVAT.String())
	require.Equal(t, "-1210.00", inv.TotalWithVAT.String())
}

func TestGetRederivesStatus(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))

	created, err := svc.Create(context.Background(), issuedDraft())
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return day(2025, time.April, 1) })
	inv, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, inv.Status)
}

func TestUpdateRejectsCancelled(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	inv, err := svc.Create(ctx, issuedDraft())
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, inv.ID, StatusCancelled))

	note := "edited"
	_, err = svc.Update(ctx, inv.ID, UpdateInput{Note: &note})
	require.ErrorIs(t, err, shared.ErrInvoiceCancelled)
}

func TestUpdateReplacesLinesAndRecomputes(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	inv, err := svc.Create(ctx, issuedDraft())
	require.NoError(t, err)
	repo.payments[inv.ID] = []money.Money{money.MustParse("300.00")}

	reduced := decimal.NewFromInt(12)
	lines := []LineInput{
		{Name: "Oil change", Quantity: decimal.NewFromInt(1), UnitPrice: money.MustParse("250.00"), VATRate: &reduced},
	}
	updated, err := svc.Update(ctx, inv.ID, UpdateInput{Lines: &lines})
	require.NoError(t, err)

	require.Equal(t, "250.00", updated.TotalWithoutVAT.String())
	require.Equal(t, "30.00", updated.TotalVAT.String())
	require.Equal(t, "280.00", updated.TotalWithVAT.String())
	require.Equal(t, "300.00", updated.PaidAmount.String())
	require.Equal(t, StatusPaid, updated.Status)
	require.Len(t, updated.Lines, 1)
}

func TestCancelFlagsCommittedPeriod(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	inv, err := svc.Create(ctx, issuedDraft())
	require.NoError(t, err)

	repo.committed = true
	result, err := svc.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, result.PostDeclarationAdjustment)
	require.Equal(t, StatusCancelled, result.Invoice.Status)

	// Cancelling again is a no-op.
	again, err := svc.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	require.False(t, again.PostDeclarationAdjustment)
}

func TestUncancelRestoresDerivedStatus(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	inv, err := svc.Create(ctx, issuedDraft())
	require.NoError(t, err)
	repo.payments[inv.ID] = []money.Money{money.MustParse("500.00")}

	_, err = svc.Cancel(ctx, inv.ID)
	require.NoError(t, err)

	restored, err := svc.Uncancel(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, restored.Status)
}

func TestDeleteGuards(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	withPayment, err := svc.Create(ctx, issuedDraft())
	require.NoError(t, err)
	repo.payments[withPayment.ID] = []money.Money{money.MustParse("100.00")}
	require.ErrorIs(t, svc.Delete(ctx, withPayment.ID), shared.ErrInvoiceReferenced)

	clean, err := svc.Create(ctx, issuedDraft())
	require.NoError(t, err)
	repo.committed = true
	require.ErrorIs(t, svc.Delete(ctx, clean.ID), shared.ErrInvoiceReferenced)

	repo.committed = false
	require.NoError(t, svc.Delete(ctx, clean.ID))
	_, err = svc.Get(ctx, clean.ID)
	require.True(t, errors.Is(err, shared.ErrUnknownInvoice))
}

func TestVATSummaryGroupsByRate(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := newTestService(repo, day(2025, time.March, 1))
	ctx := context.Background()

	zero := decimal.NewFromInt(0)
	reduced := decimal.NewFromInt(12)
	in := issuedDraft()
	in.Lines = append(in.Lines,
		LineInput{Name: "Oil", Quantity: decimal.NewFromInt(1), UnitPrice: money.MustParse("300.00"), VATRate: &reduced},
		LineInput{Name: "Deposit", Quantity: decimal.NewFromInt(1), UnitPrice: money.MustParse("250.00"), VATRate: &zero},
	)
	inv, err := svc.Create(ctx, in)
	require.NoError(t, err)

	groups, err := svc.VATSummary(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	require.Equal(t, "250.00", groups[0].Base.String())
	require.Equal(t, "0.00", groups[0].VAT.String())
	require.Equal(t, "300.00", groups[1].Base.String())
	require.Equal(t, "36.00", groups[1].VAT.String())
	require.Equal(t, "1000.00", groups[2].Base.String())
	require.Equal(t, "210.00", groups[2].VAT.String())
}
