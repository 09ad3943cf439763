package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/sms-email-bridge/cmd/mainconfig"
	"github.com/wolfman30/sms-email-bridge/internal/addressing"
	"github.com/wolfman30/sms-email-bridge/internal/api/router"
	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	appconfig "github.com/wolfman30/sms-email-bridge/internal/config"
	"github.com/wolfman30/sms-email-bridge/internal/dedupe"
	"github.com/wolfman30/sms-email-bridge/internal/directory"
	"github.com/wolfman30/sms-email-bridge/internal/http/handlers"
	"github.com/wolfman30/sms-email-bridge/internal/messaging"
	"github.com/wolfman30/sms-email-bridge/internal/notify"
	"github.com/wolfman30/sms-email-bridge/internal/observability/metrics"
	"github.com/wolfman30/sms-email-bridge/internal/preflight"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sms-email-bridge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// app is the assembled HTTP surface plus the resources it holds open.
type app struct {
	Handler http.Handler
	Report  preflight.Report
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires configuration into the router. Configuration problems the
// operator can fix do not fail startup; they are reported by preflight and
// block the webhooks until fixed.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}

	canon, err := addressing.NewCanonicalizer(cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
	}

	entries, err := loadEntries(ctx, cfg, pool, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	dir, err := directory.New(entries, canon)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("address book loaded", "entries", dir.Len())

	a.Report = preflight.Check(cfg, dir.Entries())
	if !a.Report.OK() {
		logger.Warn(a.Report.Problem())
	}

	bridgeMetrics := metrics.NewBridgeMetrics(reg)

	var core handlers.MessageRouter
	core, err = buildRouter(ctx, cfg, canon, dir, bridgeMetrics, logger)
	if err != nil {
		logger.Warn("message routing unavailable", "error", err)
		core = unavailableRouter{err: err}
	}

	store, closeStore := buildDedupeStore(ctx, cfg, pool, logger)
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	webhooks := handlers.NewWebhookHandler(handlers.WebhookConfig{
		Router:                  core,
		Dedupe:                  store,
		Metrics:                 bridgeMetrics,
		Logger:                  logger,
		TwilioAuthToken:         cfg.TwilioAuthToken,
		TwilioValidateSignature: cfg.TwilioValidateSignature,
		PublicBaseURL:           cfg.PublicBaseURL,
	})

	a.Handler = router.New(&router.Config{
		Logger:         logger,
		Webhooks:       webhooks,
		Diagnostic:     handlers.NewDiagnosticHandler(a.Report, cfg.PublicBaseURL, logger),
		Preflight:      a.Report,
		ParseToken:     cfg.SendGridParseToken,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return a, nil
}

func buildRouter(ctx context.Context, cfg *appconfig.Config, canon *addressing.Canonicalizer, dir *directory.Directory, m *metrics.BridgeMetrics, logger *logging.Logger) (*bridge.Router, error) {
	translator, err := addressing.NewTranslator(canon, cfg.EmailDomain)
	if err != nil {
		return nil, err
	}

	emailCfg := notify.ProviderSelectionConfig{
		Preference:     cfg.EmailProvider,
		SendGridAPIKey: cfg.SendGridAPIKey,
		SESFromName:    cfg.SESFromName,
	}
	if cfg.EmailProvider == notify.EmailProviderSES {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		emailCfg.SESClient = mainconfig.NewSESClient(awsCfg, cfg)
	}
	emailSender, reason := notify.BuildEmailSender(emailCfg, logger)
	if emailSender == nil {
		return nil, fmt.Errorf("email sender: %s", reason)
	}

	smsSender, provider, reason := messaging.BuildSMSSender(messaging.ProviderSelectionConfig{
		Preference:       cfg.SMSProvider,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TelnyxAPIKey:     cfg.TelnyxAPIKey,
		TelnyxProfileID:  cfg.TelnyxMessagingProfileID,
	}, logger)
	if smsSender == nil {
		return nil, fmt.Errorf("sms sender: %s", reason)
	}
	logger.Info("providers configured", "email", emailSender.Name(), "sms", provider)

	return bridge.NewRouter(bridge.Config{
		Translator: translator,
		Directory:  dir,
		Email:      emailSender,
		SMS:        smsSender,
		Subject:    cfg.SMSSubject,
		Logger:     logger,
		Metrics:    m,
	})
}

// loadEntries reads the address book from Postgres when a pool is available,
// otherwise from the configured file. A missing file yields no entries.
func loadEntries(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) ([]directory.Entry, error) {
	var src directory.Source
	if pool != nil {
		pg, err := directory.NewPostgresSource(pool)
		if err != nil {
			return nil, err
		}
		src = pg
	} else {
		src = directory.SourceFor(cfg.AddressBookPath, cfg.AddressBookSection)
	}

	entries, err := src.Load(ctx)
	if errors.Is(err, directory.ErrSourceNotFound) {
		logger.Warn(err.Error())
		return nil, nil
	}
	return entries, err
}

func connectPostgresPool(ctx context.Context, dbURL string, logger *logging.Logger) *pgxpool.Pool {
	if dbURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Error("failed to create postgres pool; falling back to address book file", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres; falling back to address book file", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// buildDedupeStore prefers Redis, then the address book database, so that
// replicas share one view. Process memory is the last resort.
func buildDedupeStore(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (dedupe.Store, func()) {
	if cfg.RedisAddr == "" {
		if pool != nil {
			if store, err := dedupe.NewPostgresStore(pool, cfg.DedupeTTL); err == nil {
				return store, nil
			}
		}
		return dedupe.NewMemoryStore(cfg.DedupeTTL), nil
	}
	client := dedupe.NewRedisClient(dedupe.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TLS:      cfg.RedisTLS,
	})
	store := dedupe.NewRedisStore(client, cfg.DedupeTTL, logger)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable; using in-memory dedupe", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return dedupe.NewMemoryStore(cfg.DedupeTTL), nil
	}
	return store, func() { _ = client.Close() }
}

// unavailableRouter stands in when providers or the mail domain are not
// configured. Preflight normally answers before it is reached.
type unavailableRouter struct {
	err error
}

func (u unavailableRouter) RouteSMS(context.Context, bridge.InboundSMS) (*bridge.OutboundEmail, error) {
	return nil, u.err
}

func (u unavailableRouter) RouteEmail(context.Context, bridge.InboundEmail) (*bridge.OutboundSMS, error) {
	return nil, u.err
}
