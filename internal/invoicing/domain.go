// Package invoicing owns the invoice ledger: documents, their lines, the
// payment-driven status machine and the invariants that tie totals to lines.
package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/numbering"
)

// InvoiceType enumerates document families in the ledger.
type InvoiceType string

const (
	TypeIssued     InvoiceType = "issued"
	TypeReceived   InvoiceType = "received"
	TypeCreditNote InvoiceType = "credit_note"
)

// Valid reports whether the type is recognized.
func (t InvoiceType) Valid() bool {
	switch t {
	case TypeIssued, TypeReceived, TypeCreditNote:
		return true
	}
	return false
}

// DocType maps the invoice type onto its numbering family.
func (t InvoiceType) DocType() numbering.DocType {
	return numbering.DocType(t)
}

// Status enumerates invoice payment states.
type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Invoice model. The persisted status is a cache of DeriveStatus; readers
// re-derive it against their own clock.
type Invoice struct {
	ID             int64       `json:"id"`
	Number         string      `json:"number"`
	Type           InvoiceType `json:"type"`
	CustomerID     *int64      `json:"customer_id,omitempty"`
	SupplierName   string      `json:"supplier_name,omitempty"`
	OrderID        *int64      `json:"order_id,omitempty"`
	CreditNoteFor  *int64      `json:"credit_note_for,omitempty"`
	IssueDate      time.Time   `json:"issue_date"`
	DueDate        time.Time   `json:"due_date"`
	TaxDate        time.Time   `json:"tax_date"`
	PaymentMethod  string      `json:"payment_method"`
	VariableSymbol string      `json:"variable_symbol,omitempty"`
	ConstantSymbol string      `json:"constant_symbol,omitempty"`
	SpecificSymbol string      `json:"specific_symbol,omitempty"`
	Note           string      `json:"note,omitempty"`

	TotalWithoutVAT money.Money `json:"total_without_vat"`
	TotalVAT        money.Money `json:"total_vat"`
	TotalWithVAT    money.Money `json:"total_with_vat"`
	PaidAmount      money.Money `json:"paid_amount"`
	Status          Status      `json:"status"`

	Lines []Line `json:"lines,omitempty"`

	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line model. The canonical field for the description is Name; the legacy
// item_name column is mapped once in the repository.
type Line struct {
	ID        int64 `json:"id"`
	InvoiceID int64 `json:"invoice_id"`

	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit,omitempty"`
	UnitPrice       money.Money     `json:"unit_price_without_vat"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	TotalWithoutVAT money.Money     `json:"total_without_vat"`
	TotalVAT        money.Money     `json:"total_vat"`
	TotalWithVAT    money.Money     `json:"total_with_vat"`

	WarehouseItemID *int64 `json:"warehouse_item_id,omitempty"`
}

// Cancelled reports whether the invoice is in the terminal cancelled state.
func (i *Invoice) Cancelled() bool {
	return i.Status == StatusCancelled
}

// Remaining is total_with_vat - paid_amount. Negative on overpayment.
func (i *Invoice) Remaining() money.Money {
	return i.TotalWithVAT.Sub(i.PaidAmount)
}

// EffectiveStatus re-derives the status against the given clock.
func (i *Invoice) EffectiveStatus(today time.Time) Status {
	return DeriveStatus(i.PaidAmount, i.TotalWithVAT, i.DueDate, today, i.Cancelled())
}

// DeriveStatus is the deterministic status function: cancelled wins; paid
// within one cent of the total is paid; any payment is partial; past due is
// overdue; otherwise unpaid.
func DeriveStatus(paid, total money.Money, dueDate, today time.Time, cancelled bool) Status {
	if cancelled {
		return StatusCancelled
	}
	remaining := total.Sub(paid)
	switch {
	case remaining.Cmp(money.Zero()) <= 0 || remaining.WithinCentOf(money.Zero()):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	case dueDate.Before(truncateDay(today)):
		return StatusOverdue
	default:
		return StatusUnpaid
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
