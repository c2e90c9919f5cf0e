package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/triage/internal/adapters/agent"
	"github.com/okian/triage/internal/adapters/http/api"
	"github.com/okian/triage/internal/adapters/journal"
	"github.com/okian/triage/internal/adapters/linear"
	"github.com/okian/triage/internal/adapters/search"
	app "github.com/okian/triage/internal/app"
	"github.com/okian/triage/internal/config"
	"github.com/okian/triage/internal/domain/auth"
	"github.com/okian/triage/internal/domain/dedupe"
	"github.com/okian/triage/internal/domain/priority"
	"github.com/okian/triage/internal/domain/route"
	"github.com/okian/triage/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Minute // dispatch runs inside the request
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	var apiOpts []api.Option
	if cfg.TrustProxyHeader {
		apiOpts = append(apiOpts, api.WithTrustedProxy())
	}
	api.NewServer(svc, apiOpts...).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildService wires every adapter the pipeline needs from configuration.
// The returned cleanup closes owned resources and is safe to call once.
func buildService(ctx context.Context, cfg *config.Config) (*app.Service, func(), error) {
	log := logger.Get()
	cleanup := func() {}

	verifier, err := auth.NewVerifier(cfg.WebhookSecret, auth.WithAllowlist(cfg.AllowedIPs))
	if err != nil {
		return nil, cleanup, err
	}

	newLinear := func(key string) (*linear.Client, error) {
		return linear.NewClient(key, linear.WithRateLimit(cfg.LinearRequestsPerSecond))
	}

	manager, err := newLinear(cfg.LinearKeyManager)
	if err != nil {
		return nil, cleanup, err
	}
	specialists := make(map[route.Category]agent.Client, len(route.Categories))
	for c, key := range map[route.Category]string{
		route.CategoryBug:         cfg.LinearKeyBug,
		route.CategoryFeature:     cfg.LinearKeyFeature,
		route.CategoryImprovement: cfg.LinearKeyImprovement,
	} {
		client, err := newLinear(key)
		if err != nil {
			return nil, cleanup, err
		}
		specialists[c] = client
	}

	runner, err := agent.NewRunner(agent.Config{
		APIKey:        cfg.AnthropicKey,
		Model:         cfg.AgentModel,
		StepLimit:     cfg.AgentStepLimit,
		MaxConcurrent: cfg.AgentMaxConcurrent,
	})
	if err != nil {
		return nil, cleanup, err
	}

	dispatchOpts := []agent.DispatchOption{agent.WithStepLimit(cfg.AgentStepLimit)}
	if cfg.SearchBaseURL != "" {
		provider, err := search.NewHTTPProvider(cfg.SearchBaseURL, cfg.SearchKey)
		if err != nil {
			return nil, cleanup, err
		}
		dispatchOpts = append(dispatchOpts, agent.WithSearchProvider(provider))
	}

	dispatcher, err := agent.NewDispatcher(runner, priority.NewEngine(), manager, specialists, dispatchOpts...)
	if err != nil {
		return nil, cleanup, err
	}

	policy, err := dedupe.ParsePolicy(cfg.DedupePolicy)
	if err != nil {
		return nil, cleanup, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithDedupePolicy(policy),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithNotifier(manager),
		app.WithDispatchTimeout(cfg.DispatchTimeout),
	}

	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = store.Close() }
		opts = append(opts, app.WithJournal(store))
		log.Info(ctx, "delivery journal enabled", logger.String("path", cfg.JournalPath))
	}

	return app.New(verifier, dispatcher, opts...), cleanup, nil
}
