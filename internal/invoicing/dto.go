package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
)

// LineInput describes one invoice line on create or line replacement.
// VATRate nil picks the configured default rate.
type LineInput struct {
	Name            string `validate:"required"`
	Quantity        decimal.Decimal
	Unit            string
	UnitPrice       money.Money
	VATRate         *decimal.Decimal
	WarehouseItemID *int64
}

// CreateInput carries a draft invoice header plus its lines. Totals and,
// when absent, the number and due date are derived by the service.
type CreateInput struct {
	Type           InvoiceType `validate:"required"`
	Number         string
	CustomerID     *int64
	SupplierName   string
	OrderID        *int64
	CreditNoteFor  *int64
	IssueDate      time.Time `validate:"required"`
	DueDate        *time.Time
	TaxDate        *time.Time
	PaymentMethod  string
	VariableSymbol string
	ConstantSymbol string
	SpecificSymbol string
	Note           string
	CreatedBy      *int64
	Lines          []LineInput `validate:"required,min=1"`
}

// UpdateInput is a partial patch. Type, number and payment ownership are
// deliberately absent: they are immutable after creation.
type UpdateInput struct {
	CustomerID     *int64
	SupplierName   *string
	OrderID        *int64
	IssueDate      *time.Time
	DueDate        *time.Time
	TaxDate        *time.Time
	PaymentMethod  *string
	VariableSymbol *string
	ConstantSymbol *string
	SpecificSymbol *string
	Note           *string
	Lines          *[]LineInput
}

// ListFilter scopes invoice listings. Zero values mean "any".
type ListFilter struct {
	Type         InvoiceType
	Status       Status
	CustomerID   int64
	Counterparty string
	IssuedFrom   time.Time
	IssuedTo     time.Time
	Page         int
	PerPage      int
}

// CancelResult reports a cancellation together with the post-declaration
// adjustment flag.
type CancelResult struct {
	Invoice                   *Invoice `json:"invoice"`
	PostDeclarationAdjustment bool     `json:"post_declaration_adjustment"`
}
