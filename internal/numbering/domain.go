// Package numbering issues gap-free document numbers per (doc_type, year)
// bucket, rendering a configurable template. Allocation joins the caller's
// transaction so a rolled back invoice insert returns the slot.
package numbering

import "time"

// DocType identifies a numbered document family.
type DocType string

const (
	DocTypeIssued     DocType = "issued"
	DocTypeReceived   DocType = "received"
	DocTypeCreditNote DocType = "credit_note"
)

// Valid reports whether the doc type is one of the recognized families.
func (t DocType) Valid() bool {
	switch t {
	case DocTypeIssued, DocTypeReceived, DocTypeCreditNote:
		return true
	}
	return false
}

// Profile carries the numbering configuration for one document family.
type Profile struct {
	Prefix      string
	Format      string
	Start       int64
	ResetYearly bool
}

// BucketYear returns the sequence bucket year for a document date, or nil
// when the family does not reset yearly.
func (p Profile) BucketYear(date time.Time) *int {
	if !p.ResetYearly {
		return nil
	}
	year := date.Year()
	return &year
}
