// Package shared holds cross-cutting domain primitives: typed error kinds
// and pagination metadata reused by every finance module.
package shared

import "errors"

// Error kinds surfaced by the finance core. Handlers map them to HTTP
// problem responses; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrValidation indicates caller-supplied data violates a precondition.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidAmount indicates a malformed monetary value.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidVatRate indicates a VAT rate outside the accepted range.
	ErrInvalidVatRate = errors.New("invalid vat rate")
	// ErrInvalidSequence indicates a broken document-number sequence.
	ErrInvalidSequence = errors.New("invalid number sequence")
	// ErrTemplate indicates an unrecognized placeholder in a number template.
	ErrTemplate = errors.New("number template error")
	// ErrInvoiceCancelled indicates a mutation against a cancelled invoice.
	ErrInvoiceCancelled = errors.New("invoice cancelled")
	// ErrInvoiceReferenced indicates the invoice is held by payments or a
	// committed VAT declaration and cannot be deleted.
	ErrInvoiceReferenced = errors.New("invoice referenced")
	// ErrUnknownInvoice indicates the invoice does not exist.
	ErrUnknownInvoice = errors.New("unknown invoice")
	// ErrUnknownPayment indicates the payment does not exist.
	ErrUnknownPayment = errors.New("unknown payment")
	// ErrConflict indicates a uniqueness or optimistic-concurrency failure.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps store-level I/O failure.
	ErrStorage = errors.New("storage failure")
)
