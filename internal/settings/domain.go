// Package settings is the flat key/value catalog backing VAT rates, due-day
// defaults, numbering templates and company identity. Reads are served from
// an in-process cache; writes refresh the cache and notify listeners so
// derived data can be invalidated.
package settings

import "github.com/motoservis-erp/motoservis-erp/internal/numbering"

// Recognized option keys. The set is exhaustive for the finance core;
// unknown keys are stored verbatim for external collaborators.
const (
	KeyVATRateStandard      = "vat_rate_standard"
	KeyVATRateReduced       = "vat_rate_reduced"
	KeyDefaultVATRate       = "default_vat_rate"
	KeyDefaultDueDays       = "default_due_days"
	KeyDefaultPaymentMethod = "default_payment_method"

	KeyIssuedInvoicePrefix      = "issued_invoice_prefix"
	KeyIssuedInvoiceFormat      = "issued_invoice_format"
	KeyIssuedInvoiceStart       = "issued_invoice_start"
	KeyIssuedInvoiceResetYearly = "issued_invoice_reset_yearly"

	KeyReceivedInvoicePrefix      = "received_invoice_prefix"
	KeyReceivedInvoiceFormat      = "received_invoice_format"
	KeyReceivedInvoiceStart       = "received_invoice_start"
	KeyReceivedInvoiceResetYearly = "received_invoice_reset_yearly"

	KeyCreditNotePrefix      = "credit_note_prefix"
	KeyCreditNoteFormat      = "credit_note_format"
	KeyCreditNoteStart       = "credit_note_start"
	KeyCreditNoteResetYearly = "credit_note_reset_yearly"

	KeyPenaltyEnabled = "penalty_enabled"
	KeyPenaltyRate    = "penalty_rate"

	KeyVATFrequency = "vat_frequency"
)

// VAT declaration frequencies.
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// Defaults applied when a key is absent from the store.
var defaults = map[string]string{
	KeyVATRateStandard:      "21",
	KeyVATRateReduced:       "12",
	KeyDefaultVATRate:       "21",
	KeyDefaultDueDays:       "14",
	KeyDefaultPaymentMethod: "bank_transfer",

	KeyIssuedInvoicePrefix:      "FV",
	KeyIssuedInvoiceFormat:      "FV{YYYY}{NUMBER:05d}",
	KeyIssuedInvoiceStart:       "1",
	KeyIssuedInvoiceResetYearly: "true",

	KeyReceivedInvoicePrefix:      "PF",
	KeyReceivedInvoiceFormat:      "PF{YYYY}{NUMBER:05d}",
	KeyReceivedInvoiceStart:       "1",
	KeyReceivedInvoiceResetYearly: "true",

	KeyCreditNotePrefix:      "DB",
	KeyCreditNoteFormat:      "DB{YYYY}{NUMBER:05d}",
	KeyCreditNoteStart:       "1",
	KeyCreditNoteResetYearly: "true",

	KeyPenaltyEnabled: "false",
	KeyPenaltyRate:    "0.05",

	KeyVATFrequency: FrequencyMonthly,
}

// numberingKeys maps a document family to its four numbering option keys.
var numberingKeys = map[numbering.DocType][4]string{
	numbering.DocTypeIssued: {
		KeyIssuedInvoicePrefix, KeyIssuedInvoiceFormat,
		KeyIssuedInvoiceStart, KeyIssuedInvoiceResetYearly,
	},
	numbering.DocTypeReceived: {
		KeyReceivedInvoicePrefix, KeyReceivedInvoiceFormat,
		KeyReceivedInvoiceStart, KeyReceivedInvoiceResetYearly,
	},
	numbering.DocTypeCreditNote: {
		KeyCreditNotePrefix, KeyCreditNoteFormat,
		KeyCreditNoteStart, KeyCreditNoteResetYearly,
	},
}

// Entry is one persisted settings row.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
