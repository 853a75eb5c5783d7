package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/consentlab/consent-backend/api/controllers"
	"github.com/consentlab/consent-backend/api/middleware"
	"github.com/consentlab/consent-backend/internal/consents"
	"github.com/consentlab/consent-backend/internal/purposes"
	"github.com/consentlab/consent-backend/pkg/logger"
	"github.com/consentlab/consent-backend/pkg/metrics"
)

// NewRouter wires the HTTP surface: middleware chain, the /api routes, and the
// Prometheus scrape endpoint.
func NewRouter(
	logg *logger.Logger,
	purposeService purposes.Service,
	consentService consents.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	httpMetrics := metrics.NewHTTPMetrics(registry)

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Metrics(httpMetrics),
	)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", controllers.Health())

		r.Route("/purposes", func(r chi.Router) {
			r.Get("/", controllers.PurposeList(purposeService, logg))
			r.Get("/{purposeID}", controllers.PurposeGet(purposeService, logg))
		})

		r.Route("/consent", func(r chi.Router) {
			r.Use(middleware.ClientIP())

			r.Get("/", controllers.ConsentList(consentService, logg))
			r.Post("/", controllers.ConsentUpsert(consentService, logg))
			r.Post("/bulk", controllers.ConsentBulkUpsert(consentService, logg))
			r.Post("/check", controllers.ConsentCheck(consentService, logg))
			r.Get("/stats", controllers.ConsentStats(consentService, logg))

			// static segments above win over the numeric id routes
			r.Get("/{consentID}", controllers.ConsentGet(consentService, logg))
			r.Delete("/{consentID}", controllers.ConsentDelete(consentService, logg))

			r.Route("/user/{userID}", func(r chi.Router) {
				r.Delete("/", controllers.ConsentDeleteForUser(consentService, logg))
				r.Get("/history", controllers.ConsentHistory(consentService, logg))
			})
		})
	})

	return r
}
