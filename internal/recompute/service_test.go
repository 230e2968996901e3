package recompute

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/payments"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

type memoryLedger struct {
	invoices map[int64]*invoicing.Invoice
}

func (m *memoryLedger) ListIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range m.invoices {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryLedger) Get(_ context.Context, id int64) (*invoicing.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrUnknownInvoice)
	}
	copied := *inv
	copied.Lines = append([]invoicing.Line(nil), inv.Lines...)
	return &copied, nil
}

func (m *memoryLedger) Update(_ context.Context, inv *invoicing.Invoice, _ bool) error {
	copied := *inv
	copied.Lines = append([]invoicing.Line(nil), inv.Lines...)
	m.invoices[inv.ID] = &copied
	return nil
}

type fakePayments struct {
	recalculated []int64
}

func (f *fakePayments) Recalculate(_ context.Context, invoiceID int64) (*payments.Result, error) {
	f.recalculated = append(f.recalculated, invoiceID)
	return &payments.Result{InvoiceID: invoiceID}, nil
}

func corruptedInvoice(id int64) *invoicing.Invoice {
	return &invoicing.Invoice{
		ID: id,
		Lines: []invoicing.Line{
			{
				Quantity:  decimal.NewFromInt(2),
				UnitPrice: money.MustParse("500.00"),
				VATRate:   decimal.NewFromInt(21),
				// Stale totals that no longer match the line inputs.
				TotalWithoutVAT: money.MustParse("1.00"),
				TotalVAT:        money.MustParse("2.00"),
				TotalWithVAT:    money.MustParse("3.00"),
			},
		},
		TotalWithoutVAT: money.MustParse("1.00"),
		TotalVAT:        money.MustParse("2.00"),
		TotalWithVAT:    money.MustParse("3.00"),
	}
}

func newTestService(ledger *memoryLedger, pay *fakePayments) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, ledger, pay)
}

func TestInvoiceRebuildsDerivedData(t *testing.T) {
	ledger := &memoryLedger{invoices: map[int64]*invoicing.Invoice{1: corruptedInvoice(1)}}
	pay := &fakePayments{}
	svc := newTestService(ledger, pay)

	require.NoError(t, svc.Invoice(context.Background(), 1))

	inv := ledger.invoices[1]
	require.Equal(t, "1000.00", inv.TotalWithoutVAT.String())
	require.Equal(t, "210.00", inv.TotalVAT.String())
	require.Equal(t, "1210.00", inv.TotalWithVAT.String())
	require.Equal(t, "1000.00", inv.Lines[0].TotalWithoutVAT.String())
	require.Equal(t, []int64{1}, pay.recalculated)
}

func TestInvoiceIsIdempotent(t *testing.T) {
	ledger := &memoryLedger{invoices: map[int64]*invoicing.Invoice{1: corruptedInvoice(1)}}
	svc := newTestService(ledger, &fakePayments{})
	ctx := context.Background()

	require.NoError(t, svc.Invoice(ctx, 1))
	first := *ledger.invoices[1]
	require.NoError(t, svc.Invoice(ctx, 1))
	second := *ledger.invoices[1]

	require.True(t, first.TotalWithVAT.Equal(second.TotalWithVAT))
	require.True(t, first.TotalVAT.Equal(second.TotalVAT))
}

func TestAllCollectsFailuresAndContinues(t *testing.T) {
	bad := corruptedInvoice(2)
	bad.Lines[0].VATRate = decimal.NewFromInt(200)
	ledger := &memoryLedger{invoices: map[int64]*invoicing.Invoice{
		1: corruptedInvoice(1),
		2: bad,
		3: corruptedInvoice(3),
	}}
	svc := newTestService(ledger, &fakePayments{})

	report, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Len(t, report.Failures, 1)
	require.Equal(t, int64(2), report.Failures[0].InvoiceID)
}
