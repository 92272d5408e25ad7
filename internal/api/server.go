// Package api serves the care plan HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/careplan-cli/internal/model"
	"github.com/sells-group/careplan-cli/internal/monitoring"
)

// CarePlanService is the care plan behaviour exposed over HTTP.
type CarePlanService interface {
	Create(ctx context.Context, form *model.CarePlanForm) (*model.GeneratedCarePlan, error)
	Get(ctx context.Context, id string) (*model.CarePlanDetail, error)
	List(ctx context.Context, limit int) ([]model.CarePlanRecord, error)
	Attribute(ctx context.Context, carePlanID string) (*model.SourceAttribution, error)
	AttributeText(ctx context.Context, carePlanText, patientRecordText string) (*model.SourceAttribution, error)
}

// StatusSource produces the /status snapshot.
type StatusSource interface {
	Collect(ctx context.Context) (*monitoring.Snapshot, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	Metrics        *monitoring.Metrics
	Status         StatusSource
	// RequestTimeout bounds each request. Zero disables it.
	RequestTimeout time.Duration
}

// NewRouter builds the chi router for svc.
func NewRouter(svc CarePlanService, opts Options) http.Handler {
	h := &handler{svc: svc, status: opts.Status}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	r.Get("/status", h.statusSnapshot)

	r.Route("/care-plans", func(r chi.Router) {
		r.Post("/", h.createCarePlan)
		r.Get("/", h.listCarePlans)
		r.Get("/{id}", h.getCarePlan)
		r.Post("/{id}/attribution", h.attributeCarePlan)
	})
	r.Post("/attribution", h.attributeText)

	return r
}
