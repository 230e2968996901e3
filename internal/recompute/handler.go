package recompute

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/motoservis-erp/motoservis-erp/internal/platform/httpx"
)

// Handler exposes the admin recompute endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers recompute routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.all)
	r.Post("/{invoiceID}", h.one)
}

func (h *Handler) all(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.All(r.Context())
	if err != nil {
		h.logger.Error("recompute all", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) one(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	if err := h.service.Invoice(r.Context(), id); err != nil {
		h.logger.Error("recompute invoice", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Report{Processed: 1})
}
