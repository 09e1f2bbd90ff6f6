// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/jobberwocky/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	ListingService      ListingServiceInterface
	SearchService       SearchServiceInterface
	SubscriptionService SubscriptionServiceInterface

	// 運用エンドポイント（nilの場合は登録しない）
	Health  HealthChecker
	Metrics http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
// APIルートはルート直下と /api 配下の両方に登録する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":    "NOT_FOUND",
			"message":  "指定されたパスは存在しません。",
			"category": "system",
		})
	})

	r.Get("/health", healthHandler(deps.Health, deps.Logger))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	listingHandler := NewListingHandler(deps.ListingService, deps.SearchService, deps.Logger)
	subHandler := NewSubscriptionHandler(deps.SubscriptionService, deps.Logger)

	api := func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		create := func(h http.HandlerFunc) http.Handler {
			if deps.RateLimiter == nil {
				return h
			}
			return deps.RateLimiter.CreateMiddleware()(h)
		}

		r.Route("/job_listings", func(r chi.Router) {
			r.Get("/", listingHandler.List)
			r.Method(http.MethodPost, "/", create(listingHandler.Create))
			r.Get("/combined_jobs", listingHandler.CombinedJobs)
			r.Get("/external_jobs", listingHandler.ExternalJobs)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.Get)
				r.Put("/", listingHandler.Update)
				r.Delete("/", listingHandler.Delete)
			})
		})

		r.Method(http.MethodPost, "/subscriptions", create(subHandler.Subscribe))
	}

	r.Group(api)
	r.Route("/api", api)

	return r
}
