// Package router wires the prediction API routes and applies the
// middleware chain.
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/middleware"
)

type Deps struct {
	Handler   *handler.Handler
	Checker   *health.Checker
	Analytics *analytics.Handler
	Metrics   *metrics.Metrics
	Limiter   *middleware.Limiter
}

// New builds the API handler.
//
// Route table:
//
//	GET    /                     banner
//	POST   /predict              score {text, model}
//	POST   /predict/url          fetch an article and score it
//	GET    /models               loaded models
//	POST   /feedback             record a verdict
//	GET    /feedback/stats       feedback counts
//	GET    /analytics            live prediction statistics
//	GET    /cache/stats          prediction cache counters
//	POST   /cache/invalidate     drop cached predictions
//	GET    /health/live          liveness
//	GET    /health/ready         readiness
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → RateLimit → Timeout → mux
func New(cfg *config.Config, d Deps) http.Handler {
	h := d.Handler
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /models", h.Models)

	mux.HandleFunc("POST /predict", h.Predict)
	mux.HandleFunc("POST /predict/url", h.PredictURL)

	mux.HandleFunc("POST /feedback", h.Feedback)
	mux.HandleFunc("GET /feedback/stats", h.FeedbackStats)

	if d.Analytics != nil {
		mux.HandleFunc("GET /analytics", d.Analytics.Stats)
	}

	mux.HandleFunc("GET /cache/stats", h.CacheStats)
	mux.HandleFunc("POST /cache/invalidate", h.CacheInvalidate)

	if d.Checker != nil {
		mux.HandleFunc("GET /health/live", d.Checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", d.Checker.ReadyHandler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.RateLimit(cfg.RateLimit, d.Limiter)(chain)
	chain = middleware.CORS(cfg.CORS)(chain)
	chain = middleware.Metrics(d.Metrics)(chain)
	chain = middleware.RequestID(chain)

	return chain
}
