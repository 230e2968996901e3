package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/motoservis-erp/motoservis-erp/internal/platform/httpx"
)

// Handler manages settings endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{key}", h.get)
	r.Put("/{key}", h.set)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.All(r.Context())
	if err != nil {
		h.logger.Error("list settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.service.Get(r.Context(), key)
	if err != nil {
		h.logger.Error("get setting", slog.Any("error", err), slog.String("key", key))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Entry{Key: key, Value: value})
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body struct {
		Value string `json:"value"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}

	if err := h.service.Set(r.Context(), key, body.Value); err != nil {
		h.logger.Error("set setting", slog.Any("error", err), slog.String("key", key))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, Entry{Key: key, Value: body.Value})
}
