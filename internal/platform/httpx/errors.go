package httpx

import (
	"errors"
	"net/http"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// RespondError maps finance-core error kinds to HTTP problem responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnknownInvoice),
		errors.Is(err, shared.ErrUnknownPayment):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvoiceCancelled),
		errors.Is(err, shared.ErrInvoiceReferenced):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrInvalidVatRate),
		errors.Is(err, shared.ErrInvalidSequence),
		errors.Is(err, shared.ErrTemplate):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
