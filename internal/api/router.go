package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accession-studio/engine/internal/api/handlers"
	mw "github.com/accession-studio/engine/internal/api/middleware"
)

type Dependencies struct {
	AccessionsHandler *handlers.AccessionsHandler
	BatchesHandler    *handlers.BatchesHandler
	HealthHandler     *handlers.HealthHandler

	// Registry backs /metrics and the HTTP metrics middleware. Nil disables both.
	Registry *prometheus.Registry

	RateLimiter *mw.RateLimiter
	CORSOrigins []string
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.CORSOrigins))
	if dep.Registry != nil {
		r.Use(mw.NewHTTPMetrics(dep.Registry).Handler)
	}
	r.Use(chimid.Compress(5))

	hh := dep.HealthHandler
	if hh == nil {
		hh = handlers.NewHealthHandler(nil)
	}
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)
	if dep.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(dep.Registry, promhttp.HandlerOpts{Registry: dep.Registry}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		if dep.RateLimiter != nil {
			api.Use(dep.RateLimiter.Handler)
		}

		if ah := dep.AccessionsHandler; ah != nil {
			api.Route("/accessions", func(ar chi.Router) {
				ar.Get("/", ah.List)
				ar.Post("/", ah.Submit)
				ar.Post("/search", ah.Search)
				ar.Route("/{accession}", func(one chi.Router) {
					one.Get("/", ah.Get)
					one.Patch("/", ah.Patch)
					one.Get("/status", ah.Status)
					one.Post("/deprecate", ah.Deprecate)
					one.Post("/merge", ah.Merge)
					one.Get("/versions/{version}", ah.GetVersion)
					one.Put("/versions/{version}", ah.Update)
				})
			})
		}

		if bh := dep.BatchesHandler; bh != nil {
			api.Route("/batches", func(br chi.Router) {
				br.Post("/", bh.Submit)
				br.Get("/{id}", bh.Get)
			})
		}
	})

	return r
}
