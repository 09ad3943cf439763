package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/sms-email-bridge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/sms-email-bridge/internal/http/middleware"
	"github.com/wolfman30/sms-email-bridge/internal/preflight"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhooks       *handlers.WebhookHandler
	Diagnostic     http.Handler
	Preflight      preflight.Report
	ParseToken     string
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.Diagnostic != nil {
		r.Get("/", cfg.Diagnostic.ServeHTTP)
	}

	if cfg.Webhooks != nil {
		r.Group(func(webhooks chi.Router) {
			webhooks.Use(httpmiddleware.RequirePreflight(cfg.Preflight, cfg.Logger))
			webhooks.Post(handlers.SMSWebhookPath, cfg.Webhooks.HandleSMS)
			webhooks.With(requireParseToken(cfg.ParseToken)).Post(handlers.EmailWebhookPath, cfg.Webhooks.HandleEmail)
		})
	}

	return r
}
