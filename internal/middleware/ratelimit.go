package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// RateLimitMiddleware limits requests per client IP within window. Health and metrics
// endpoints are never limited.
func RateLimitMiddleware(requests int, window time.Duration) func(http.Handler) http.Handler {
	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(limitedRoute(r)).Inc()
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded, please try again later",
			})
		}),
	)

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// limitedRoute resolves the route pattern for a request rejected before routing ran.
func limitedRoute(r *http.Request) string {
	if p := routePattern(r); p != "unmatched" {
		return p
	}
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.Routes != nil {
		tctx := chi.NewRouteContext()
		if rc.Routes.Match(tctx, r.Method, r.URL.Path) {
			if p := tctx.RoutePattern(); p != "" {
				return p
			}
		}
	}
	return "unmatched"
}
