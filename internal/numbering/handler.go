package numbering

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/motoservis-erp/motoservis-erp/internal/platform/httpx"
)

// Handler manages numbering endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers numbering routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{docType}/preview", h.preview)
	r.Post("/{docType}/allocate", h.allocate)
}

type numberResponse struct {
	DocType DocType `json:"doc_type"`
	Number  string  `json:"number"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	docType := DocType(chi.URLParam(r, "docType"))
	date := h.date(r)

	number, err := h.service.Preview(r.Context(), docType, date)
	if err != nil {
		h.logger.Error("preview number", slog.Any("error", err), slog.String("doc_type", string(docType)))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, numberResponse{DocType: docType, Number: number})
}

// allocate consumes a sequence slot outside a document insert. Intended for
// imports that bring their own documents.
func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	docType := DocType(chi.URLParam(r, "docType"))
	date := h.date(r)

	number, err := h.service.Allocate(r.Context(), docType, date)
	if err != nil {
		h.logger.Error("allocate number", slog.Any("error", err), slog.String("doc_type", string(docType)))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, numberResponse{DocType: docType, Number: number})
}

func (h *Handler) date(r *http.Request) time.Time {
	if v := r.URL.Query().Get("date"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return time.Now()
}
