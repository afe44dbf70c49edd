// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consentservice "coalesce/internal/consent/service"
	contactservice "coalesce/internal/contact/service"
	"coalesce/internal/importer"
	"coalesce/internal/platform/metrics"
	"coalesce/internal/platform/middleware"
	"coalesce/internal/reviewqueue"
	"coalesce/pkg/platform/audit"
)

// Handler holds the wired services behind the HTTP surface.
type Handler struct {
	contacts  *contactservice.Service
	consent   *consentservice.Service
	processor *importer.Processor
	auditLog  audit.Store
	review    *reviewqueue.CSVQueue

	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator

	// health reports readiness of backing stores; nil checks are skipped.
	health []func() error
}

// Config carries the handler's collaborators.
type Config struct {
	Contacts  *contactservice.Service
	Consent   *consentservice.Service
	Processor *importer.Processor
	Audit     audit.Store
	Review    *reviewqueue.CSVQueue

	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator

	HealthChecks []func() error
}

// NewHandler creates the HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		contacts:     cfg.Contacts,
		consent:      cfg.Consent,
		processor:    cfg.Processor,
		auditLog:     cfg.Audit,
		review:       cfg.Review,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		jwtValidator: cfg.JWTValidator,
		health:       cfg.HealthChecks,
	}
}

// NewRouter wires all endpoints. Everything except health and metrics sits
// behind staff authentication so the audit trail always has a real actor.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Latency(h.metrics))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Post("/batches", h.handleRunBatch)
		r.Get("/batches/{batchID}/audit", h.handleBatchAudit)
		r.Get("/batches/{batchID}/review", h.handleReviewDownload)

		r.Get("/contacts", h.handleLookupContacts)
		r.Get("/contacts/{contactID}", h.handleGetContact)
		r.Get("/contacts/{contactID}/audit", h.handleContactAudit)
		r.Post("/contacts/{contactID}/edits", h.handleStaffEdit)
		r.Put("/contacts/{contactID}/lock", h.handleLockOverride)
		r.Delete("/contacts/{contactID}", h.handleTombstone)

		r.Post("/contacts/{contactID}/consent", h.handleRecordConsent)
		r.Post("/contacts/{contactID}/consent/withdraw", h.handleWithdrawConsent)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.health {
		if check == nil {
			continue
		}
		if err := check(); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
