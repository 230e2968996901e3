package reporting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/motoservis-erp/motoservis-erp/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Handler manages reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/receivables", h.receivables)
	r.Get("/payables", h.payables)
	r.Get("/cashflow", h.cashflow)
	r.Get("/duplicates", h.duplicates)
	r.Get("/vat-declaration", h.declaration)
	r.Post("/vat-declaration", h.saveDeclaration)
	r.Get("/vat-declarations", h.listDeclarations)
	r.Post("/vat-declarations/{id}/commit", h.commitDeclaration)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Dashboard(r.Context(), h.horizon(r))
	if err != nil {
		h.logger.Error("reporting dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) receivables(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ReceivablesWithTerms(r.Context())
	if err != nil {
		h.logger.Error("list receivables", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) payables(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Payables(r.Context())
	if err != nil {
		h.logger.Error("list payables", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) cashflow(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.Cashflow(r.Context(), h.horizon(r))
	if err != nil {
		h.logger.Error("cashflow", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) duplicates(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from/to must be YYYY-MM-DD")
		return
	}
	groups, err := h.service.Duplicates(r.Context(), period)
	if err != nil {
		h.logger.Error("duplicates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) declaration(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from/to must be YYYY-MM-DD")
		return
	}
	d, err := h.service.Declaration(r.Context(), period)
	if err != nil {
		h.logger.Error("vat declaration", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) saveDeclaration(w http.ResponseWriter, r *http.Request) {
	period, err := h.period(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from/to must be YYYY-MM-DD")
		return
	}
	d, err := h.service.SaveDeclaration(r.Context(), period)
	if err != nil {
		h.logger.Error("save vat declaration", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) listDeclarations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListDeclarations(r.Context())
	if err != nil {
		h.logger.Error("list vat declarations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) commitDeclaration(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid declaration id")
		return
	}
	if err := h.service.CommitDeclaration(r.Context(), id); err != nil {
		h.logger.Error("commit vat declaration", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// horizon parses the days query param of the projection endpoints. Zero
// falls through to the service default.
func (h *Handler) horizon(r *http.Request) int {
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// period parses from/to or falls back to the configured tax period.
func (h *Handler) period(r *http.Request) (Period, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" && toStr == "" {
		return h.service.DefaultPeriod(r.Context(), h.service.now())
	}
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return Period{}, err
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: from, End: to}, nil
}
