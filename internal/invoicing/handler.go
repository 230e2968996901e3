package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/motoservis-erp/motoservis-erp/internal/money"
	"github.com/motoservis-erp/motoservis-erp/internal/platform/httpx"
	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/uncancel", h.uncancel)
	r.Get("/{id}/vat-summary", h.vatSummary)
}

type lineBody struct {
	Name            string           `json:"name"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Unit            string           `json:"unit"`
	UnitPrice       money.Money      `json:"unit_price_without_vat"`
	VATRate         *decimal.Decimal `json:"vat_rate"`
	WarehouseItemID *int64           `json:"warehouse_item_id"`
}

type createBody struct {
	Type           string     `json:"type"`
	Number         string     `json:"number"`
	CustomerID     *int64     `json:"customer_id"`
	SupplierName   string     `json:"supplier_name"`
	OrderID        *int64     `json:"order_id"`
	CreditNoteFor  *int64     `json:"credit_note_for"`
	IssueDate      string     `json:"issue_date"`
	DueDate        *string    `json:"due_date"`
	TaxDate        *string    `json:"tax_date"`
	PaymentMethod  string     `json:"payment_method"`
	VariableSymbol string     `json:"variable_symbol"`
	ConstantSymbol string     `json:"constant_symbol"`
	SpecificSymbol string     `json:"specific_symbol"`
	Note           string     `json:"note"`
	Lines          []lineBody `json:"lines"`
}

type updateBody struct {
	CustomerID     *int64      `json:"customer_id"`
	SupplierName   *string     `json:"supplier_name"`
	OrderID        *int64      `json:"order_id"`
	IssueDate      *string     `json:"issue_date"`
	DueDate        *string     `json:"due_date"`
	TaxDate        *string     `json:"tax_date"`
	PaymentMethod  *string     `json:"payment_method"`
	VariableSymbol *string     `json:"variable_symbol"`
	ConstantSymbol *string     `json:"constant_symbol"`
	SpecificSymbol *string     `json:"specific_symbol"`
	Note           *string     `json:"note"`
	Lines          *[]lineBody `json:"lines"`
}

type listResponse struct {
	Invoices   []Invoice         `json:"invoices"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}

	issueDate, err := parseDate(body.IssueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issue_date must be YYYY-MM-DD")
		return
	}
	dueDate, err := parseDatePtr(body.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
		return
	}
	taxDate, err := parseDatePtr(body.TaxDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tax_date must be YYYY-MM-DD")
		return
	}

	in := CreateInput{
		Type:           InvoiceType(body.Type),
		Number:         body.Number,
		CustomerID:     body.CustomerID,
		SupplierName:   body.SupplierName,
		OrderID:        body.OrderID,
		CreditNoteFor:  body.CreditNoteFor,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		TaxDate:        taxDate,
		PaymentMethod:  body.PaymentMethod,
		VariableSymbol: body.VariableSymbol,
		ConstantSymbol: body.ConstantSymbol,
		SpecificSymbol: body.SpecificSymbol,
		Note:           body.Note,
		CreatedBy:      actorID(r),
		Lines:          lineInputs(body.Lines),
	}

	inv, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Type:         InvoiceType(q.Get("type")),
		Status:       Status(q.Get("status")),
		Counterparty: q.Get("counterparty"),
	}
	if v := q.Get("customer_id"); v != "" {
		filter.CustomerID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("issued_from"); v != "" {
		filter.IssuedFrom, _ = time.Parse(dateLayout, v)
	}
	if v := q.Get("issued_to"); v != "" {
		filter.IssuedTo, _ = time.Parse(dateLayout, v)
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	invoices, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Invoices: invoices, Pagination: pagination})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body updateBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}

	patch := UpdateInput{
		CustomerID:     body.CustomerID,
		SupplierName:   body.SupplierName,
		OrderID:        body.OrderID,
		PaymentMethod:  body.PaymentMethod,
		VariableSymbol: body.VariableSymbol,
		ConstantSymbol: body.ConstantSymbol,
		SpecificSymbol: body.SpecificSymbol,
		Note:           body.Note,
	}
	var err error
	if patch.IssueDate, err = parseDatePtr(body.IssueDate); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issue_date must be YYYY-MM-DD")
		return
	}
	if patch.DueDate, err = parseDatePtr(body.DueDate); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
		return
	}
	if patch.TaxDate, err = parseDatePtr(body.TaxDate); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tax_date must be YYYY-MM-DD")
		return
	}
	if body.Lines != nil {
		lines := lineInputs(*body.Lines)
		patch.Lines = &lines
	}

	inv, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.logger.Error("update invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.logger.Error("cancel invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) uncancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Uncancel(r.Context(), id)
	if err != nil {
		h.logger.Error("uncancel invoice", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) vatSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	groups, err := h.service.VATSummary(r.Context(), id)
	if err != nil {
		h.logger.Error("invoice vat summary", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func lineInputs(bodies []lineBody) []LineInput {
	lines := make([]LineInput, 0, len(bodies))
	for _, b := range bodies {
		lines = append(lines, LineInput{
			Name:            b.Name,
			Quantity:        b.Quantity,
			Unit:            b.Unit,
			UnitPrice:       b.UnitPrice,
			VATRate:         b.VATRate,
			WarehouseItemID: b.WarehouseItemID,
		})
	}
	return lines
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// actorID reads the optional X-Actor-ID header set by the front office.
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
