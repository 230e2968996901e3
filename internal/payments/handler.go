package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/httpx"
)

// Handler manages payment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.record)
	r.Delete("/{id}", h.remove)
	r.Get("/invoice/{invoiceID}", h.listForInvoice)
}

type recordBody struct {
	InvoiceID   int64       `json:"invoice_id"`
	Amount      money.Money `json:"amount"`
	PaymentDate *string     `json:"payment_date"`
	Method      string      `json:"method"`
	Note        string      `json:"note"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var body recordBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}

	var paymentDate *time.Time
	if body.PaymentDate != nil && *body.PaymentDate != "" {
		t, err := time.Parse("2006-01-02", *body.PaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "payment_date must be YYYY-MM-DD")
			return
		}
		paymentDate = &t
	}

	result, err := h.service.Record(r.Context(), RecordInput{
		InvoiceID:   body.InvoiceID,
		Amount:      body.Amount,
		PaymentDate: paymentDate,
		Method:      body.Method,
		Note:        body.Note,
		CreatedBy:   actorID(r),
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.Int64("invoice_id", body.InvoiceID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payment id")
		return
	}

	result, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("delete payment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listForInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}

	list, err := h.service.ListForInvoice(r.Context(), invoiceID)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err), slog.Int64("invoice_id", invoiceID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func actorID(r *http.Request) *int64 {
	v := r.Header.Get("X-Actor-ID")
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
