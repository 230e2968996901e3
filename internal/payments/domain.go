// Package payments applies payments against invoices. Every mutation runs in
// one transaction that locks the invoice row, rebuilds paid_amount from the
// payment sum and persists the re-derived status.
package payments

import (
	"time"

	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/money"
)

// Payment model.
type Payment struct {
	ID          int64       `json:"id"`
	InvoiceID   int64       `json:"invoice_id"`
	Amount      money.Money `json:"amount"`
	PaymentDate time.Time   `json:"payment_date"`
	Method      string      `json:"method,omitempty"`
	Note        string      `json:"note,omitempty"`
	CreatedBy   *int64      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// StatusFn derives the invoice status from the state visible inside the
// locked transaction. Supplied by the service so the repository stays free
// of status rules.
type StatusFn func(paid, total money.Money, dueDate time.Time, cancelled bool) invoicing.Status

// RecordInput carries a new payment.
type RecordInput struct {
	InvoiceID   int64       `json:"invoice_id"`
	Amount      money.Money `json:"amount"`
	PaymentDate *time.Time  `json:"payment_date"`
	Method      string      `json:"method"`
	Note        string      `json:"note"`
	CreatedBy   *int64      `json:"-"`
}

// Result reports a mutation together with the invoice state it produced.
type Result struct {
	Payment    *Payment         `json:"payment,omitempty"`
	InvoiceID  int64            `json:"invoice_id"`
	PaidAmount money.Money      `json:"paid_amount"`
	Status     invoicing.Status `json:"status"`
}
