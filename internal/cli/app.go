package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"margem/internal/adminapi"
	"margem/internal/auth"
	"margem/internal/httpclient"
	"margem/internal/platform/config"
	"margem/internal/platform/metrics"
	"margem/internal/platform/tracer"
	"margem/internal/session"
	"margem/internal/tokenstore"
)

// App is the wired client stack one command invocation works with.
type App struct {
	Config   config.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Tokens   *tokenstore.Store
	HTTP     *httpclient.Client
	Session  *session.Store
	Admin    *adminapi.Client

	closers []io.Closer
}

// NewApp builds the stack: token storage (Redis when configured, a state file
// otherwise), the HTTP client and its pipeline, and the session container
// registered as the pipeline's auth-error handler.
func NewApp(ctx context.Context, cfg config.Client, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}

	kv, err := app.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	app.Tokens = tokenstore.New(kv,
		tokenstore.WithLogger(logger),
		tokenstore.WithTokenKey(cfg.TokenStorageKey),
	)

	clientMetrics := metrics.NewClient(app.Registry)
	tr := tracer.NewOTel()

	pipeline := httpclient.NewPipeline(app.Tokens,
		httpclient.WithPipelineLogger(logger),
		httpclient.WithPipelineTracer(tr),
		httpclient.WithPipelineMetrics(clientMetrics),
		httpclient.WithLoginPath(auth.LoginPath),
	)
	app.HTTP = httpclient.New(httpclient.ConfigFromEnv(cfg),
		httpclient.WithLogger(logger),
		httpclient.WithTracer(tr),
		httpclient.WithMetrics(clientMetrics),
		httpclient.WithPipeline(pipeline),
	)

	app.Session = session.New(auth.New(app.HTTP, auth.WithLogger(logger)), app.Tokens,
		session.WithLogger(logger),
	)
	pipeline.SetAuthErrorHandler(app.Session.Expire)

	app.Admin = adminapi.New(app.HTTP, adminapi.WithLogger(logger))
	return app, nil
}

func (a *App) openStorage(ctx context.Context) (tokenstore.KeyValueStore, error) {
	if a.Config.RedisURL != "" {
		store, err := tokenstore.OpenRedisStore(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis token store: %w", err)
		}
		a.closers = append(a.closers, store)
		a.Logger.Debug("using redis token store")
		return store, nil
	}
	store := tokenstore.NewFileStore(a.Config.StateDir)
	a.Logger.Debug("using file token store", "path", store.Path())
	return store, nil
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
