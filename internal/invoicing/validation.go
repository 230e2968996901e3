package invoicing

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
	"github.com/motoservis-erp/motoservis-erp/internal/vat"
)

var validate = validator.New()

// ValidateCreateInput enforces the create preconditions: a recognized type,
// a counterparty suited to the type, a non-empty line list, positive
// quantities (negative for credit notes), non-negative unit prices and
// in-range VAT rates.
func ValidateCreateInput(in CreateInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invoicing: %v: %w", err, shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("invoicing: type %q: %w", in.Type, shared.ErrValidation)
	}

	switch in.Type {
	case TypeIssued:
		if in.CustomerID == nil {
			return fmt.Errorf("invoicing: issued invoice requires customer_id: %w", shared.ErrValidation)
		}
	case TypeReceived, TypeCreditNote:
		if in.CustomerID == nil && in.SupplierName == "" {
			return fmt.Errorf("invoicing: %s invoice requires customer_id or supplier_name: %w", in.Type, shared.ErrValidation)
		}
	}

	if in.DueDate != nil && in.IssueDate.After(*in.DueDate) {
		return fmt.Errorf("invoicing: issue_date after due_date: %w", shared.ErrValidation)
	}

	return validateLines(in.Type, in.Lines)
}

func validateLines(invType InvoiceType, lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("invoicing: empty line list: %w", shared.ErrValidation)
	}
	for i, line := range lines {
		if line.Name == "" {
			return fmt.Errorf("invoicing: line %d: missing name: %w", i+1, shared.ErrValidation)
		}
		if line.Quantity.IsZero() {
			return fmt.Errorf("invoicing: line %d: zero quantity: %w", i+1, shared.ErrValidation)
		}
		if invType != TypeCreditNote && line.Quantity.IsNegative() {
			return fmt.Errorf("invoicing: line %d: negative quantity on %s invoice: %w", i+1, invType, shared.ErrValidation)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("invoicing: line %d: negative unit price: %w", i+1, shared.ErrValidation)
		}
		if line.VATRate != nil {
			if err := vat.ValidateRate(*line.VATRate); err != nil {
				return fmt.Errorf("invoicing: line %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// validateDates re-checks the issue/due ordering on the patched header.
func validateDates(issue, due time.Time) error {
	if issue.After(due) {
		return fmt.Errorf("invoicing: issue_date after due_date: %w", shared.ErrValidation)
	}
	return nil
}
