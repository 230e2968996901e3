package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/motoservis-erp/motoservis-erp/internal/invoicing"
	"github.com/motoservis-erp/motoservis-erp/internal/numbering"
	"github.com/motoservis-erp/motoservis-erp/internal/observability"
	"github.com/motoservis-erp/motoservis-erp/internal/payments"
	"github.com/motoservis-erp/motoservis-erp/internal/recompute"
	"github.com/motoservis-erp/motoservis-erp/internal/reporting"
	"github.com/motoservis-erp/motoservis-erp/internal/settings"
	"github.com/motoservis-erp/motoservis-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SettingsHandler  *settings.Handler
	InvoicingHandler *invoicing.Handler
	PaymentsHandler  *payments.Handler
	ReportingHandler *reporting.Handler
	NumberingHandler *numbering.Handler
	RecomputeHandler *recompute.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.SettingsHandler != nil {
		r.Route("/settings", params.SettingsHandler.MountRoutes)
	}
	if params.InvoicingHandler != nil {
		r.Route("/invoices", params.InvoicingHandler.MountRoutes)
	}
	if params.PaymentsHandler != nil {
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
	}
	if params.ReportingHandler != nil {
		r.Route("/reports", params.ReportingHandler.MountRoutes)
	}
	if params.NumberingHandler != nil {
		r.Route("/numbering", params.NumberingHandler.MountRoutes)
	}
	if params.RecomputeHandler != nil {
		r.Route("/admin/recompute", params.RecomputeHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
