package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/RiskIndex/internal/hermes"
	"github.com/MikeSquared-Agency/RiskIndex/internal/importer"
	"github.com/MikeSquared-Agency/RiskIndex/internal/results"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

// RouterConfig holds the HTTP-facing settings.
type RouterConfig struct {
	AdminToken         string
	RateLimitPerMinute int
	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP via RealIP.
	TrustProxy bool
	Import             importer.Options
}

func NewRouter(s store.Store, h hermes.Client, c results.Computer, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	useCommon(r, cfg, logger)

	catalog := NewCatalogHandler(s)
	scenarios := NewScenariosHandler(s, h, logger)
	weights := NewWeightsHandler(s, h, logger)
	vals := NewValuesHandler(s, h, cfg.Import, logger)
	res := NewResultsHandler(c)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/countries", catalog.Countries)
		r.Get("/categories", catalog.Categories)
		r.Get("/indicators", catalog.Indicators)

		r.Get("/scenarios", scenarios.List)
		r.Get("/scenarios/active", scenarios.Active)
		r.Get("/scenarios/{id}", scenarios.Get)
		r.Get("/scenarios/{id}/weights/categories", weights.GetCategories)
		r.Get("/scenarios/{id}/weights/indicators", weights.GetIndicators)

		r.Get("/indicator-values", vals.List)

		mountResults(r, res)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Post("/scenarios/{id}/activate", scenarios.Activate)
			r.Delete("/scenarios/{id}/categories/{category_id}", scenarios.RemoveCategory)
			r.Put("/scenarios/{id}/weights/categories", weights.PutCategories)
			r.Put("/scenarios/{id}/weights/categories/{category_id}/indicators", weights.PutIndicators)
			r.Post("/scenarios/{id}/indicator-values/import", vals.Import)
			r.Post("/indicator-values", vals.Upsert)
			r.Delete("/indicator-values/{id}", vals.Delete)
		})
	})

	return r
}

// NewResultsRouter serves only the read-only results endpoints. It is used
// when results are computed from the remote backend and no local store is
// available for catalog and admin routes.
func NewResultsRouter(c results.Computer, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	useCommon(r, cfg, logger)

	res := NewResultsHandler(c)
	r.Route("/api/v1", func(r chi.Router) {
		mountResults(r, res)
	})
	return r
}

func useCommon(r chi.Router, cfg RouterConfig, logger *slog.Logger) {
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerMinute))
}

func mountResults(r chi.Router, res *ResultsHandler) {
	r.Get("/results", res.Results)
	r.Get("/results/ranking/global", res.GlobalRanking)
	r.Get("/results/ranking/category", res.CategoryRanking)
	r.Get("/results/explain/{country_id}", res.Explain)
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
