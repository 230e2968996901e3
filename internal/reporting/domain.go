// Package reporting aggregates the ledger into period views: open
// receivables and payables, the cash-flow projection, VAT declarations and
// duplicate detection. Reads are cached in Redis behind a version key.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
)

// ReminderLevel grades how hard an open receivable should be chased.
// 0 not yet due, 1 up to two weeks late, 2 up to a month, 3 beyond.
type ReminderLevel int

// PayablePriority grades open payables for the payment run.
type PayablePriority string

const (
	PriorityHigh   PayablePriority = "high"
	PriorityMedium PayablePriority = "medium"
	PriorityLow    PayablePriority = "low"
)

// ReceivableItem is one open issued invoice in the receivables view.
type ReceivableItem struct {
	InvoiceID     int64         `json:"invoice_id"`
	Number        string        `json:"number"`
	CustomerID    *int64        `json:"customer_id,omitempty"`
	Counterparty  string        `json:"counterparty,omitempty"`
	DueDate       time.Time     `json:"due_date"`
	Total         money.Money   `json:"total_with_vat"`
	Paid          money.Money   `json:"paid_amount"`
	Remaining     money.Money   `json:"remaining"`
	DaysOverdue   int           `json:"days_overdue"`
	ReminderLevel ReminderLevel `json:"reminder_level"`
}

// PayableItem is one open received invoice in the payables view.
type PayableItem struct {
	InvoiceID    int64           `json:"invoice_id"`
	Number       string          `json:"number"`
	Counterparty string          `json:"counterparty,omitempty"`
	DueDate      time.Time       `json:"due_date"`
	Total        money.Money     `json:"total_with_vat"`
	Paid         money.Money     `json:"paid_amount"`
	Remaining    money.Money     `json:"remaining"`
	DaysToDue    int             `json:"days_to_due"`
	Priority     PayablePriority `json:"priority"`
}

// CashflowBucket is one projected week of the horizon. The first bucket
// starts today; income and expense are the remaining amounts of open
// invoices falling due inside the bucket.
type CashflowBucket struct {
	WeekStart  time.Time   `json:"week_start"`
	Income     money.Money `json:"income"`
	Expense    money.Money `json:"expense"`
	Difference money.Money `json:"difference"`
	Cumulative money.Money `json:"cumulative"`
}

// DeclarationLine is one (document side, rate) bucket of a VAT declaration.
type DeclarationLine struct {
	InvoiceType string          `json:"invoice_type"`
	Rate        decimal.Decimal `json:"rate"`
	Base        money.Money     `json:"base"`
	VAT         money.Money     `json:"vat"`
}

// Declaration statuses.
const (
	DeclarationDraft     = "draft"
	DeclarationCommitted = "committed"
)

// VATDeclaration is the computed, optionally persisted declaration of one
// tax period. Output VAT comes from issued invoices and credit notes, input
// VAT from received ones; Result is output minus input.
type VATDeclaration struct {
	ID          int64             `json:"id,omitempty"`
	PeriodStart time.Time         `json:"period_start"`
	PeriodEnd   time.Time         `json:"period_end"`
	OutputVAT   money.Money       `json:"output_vat"`
	InputVAT    money.Money       `json:"input_vat"`
	Result      money.Money       `json:"result"`
	Lines       []DeclarationLine `json:"lines"`
	Status      string            `json:"status,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
}

// DuplicateGroup is a set of invoices sharing a document number inside the
// inspected window.
type DuplicateGroup struct {
	Number string  `json:"number"`
	IDs    []int64 `json:"invoice_ids"`
	Count  int     `json:"count"`
}

// Period is a closed date interval.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MonthlyPeriod returns the calendar month containing the date.
func MonthlyPeriod(at time.Time) Period {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// QuarterlyPeriod returns the calendar quarter containing the date.
func QuarterlyPeriod(at time.Time) Period {
	quarterMonth := time.Month((int(at.Month())-1)/3*3 + 1)
	start := time.Date(at.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 3, -1)}
}

// GradeReceivable maps days overdue onto a reminder level.
func GradeReceivable(daysOverdue int) ReminderLevel {
	switch {
	case daysOverdue <= 0:
		return 0
	case daysOverdue <= 14:
		return 1
	case daysOverdue <= 30:
		return 2
	default:
		return 3
	}
}

// highAmountThreshold marks payables that always need attention.
var highAmountThreshold = money.MustParse("50000.00")

// GradePayable maps due distance and size onto a payment priority.
func GradePayable(daysToDue int, remaining money.Money) PayablePriority {
	switch {
	case daysToDue <= 7 || remaining.Cmp(highAmountThreshold) > 0:
		return PriorityHigh
	case daysToDue <= 14:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
