package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shortlink/internal/adapter/qrcode"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/registry"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/postgres"
	"golang.org/x/sync/errgroup"

	deliveryHTTP "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	fileRepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/file"
	pgRepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
)

const serviceName = "shortlink"

// App wires the registry, its store and the use case for one configuration.
type App struct {
	cfg     *config.Config
	logger  *httplog.Logger
	reg     *registry.Registry
	closers []func() error

	URLUseCase *usecase.URLUseCase
}

// NewLogger builds the structured logger shared by the HTTP layer and the
// background components.
func NewLogger(cfg *config.Config, w io.Writer) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	prod := cfg.Env == config.EnvProd

	return httplog.NewLogger(serviceName, httplog.Options{
		LogLevel:       level,
		JSON:           prod,
		Concise:        !prod,
		RequestHeaders: prod,
		Tags: map[string]string{
			"env": cfg.Env,
		},
		Writer: w,
	})
}

// New opens the configured store, loads the registry from it and builds the use case.
func New(ctx context.Context, cfg *config.Config, logger *httplog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.reg, err = registry.Open(ctx, store, logger.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: failed to open registry: %w", op, err)
	}
	a.closers = append(a.closers, a.reg.Close)

	generator := shortcode.New(shortcode.WithMaxRetries(cfg.ShortCode.MaxRetries))
	a.URLUseCase = usecase.NewURLUseCase(cfg.BaseURL, a.reg, generator)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (registry.Store, error) {
	switch a.cfg.Storage.Driver {
	case config.StoragePostgres:
		dsn := a.cfg.Postgres.DSN()

		if err := postgres.RunMigrations(pgRepo.Migrations, pgRepo.MigrationsDir, dsn); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		db, err := postgres.New(
			ctx,
			dsn,
			postgres.WithConnMaxIdleTime(a.cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(a.cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(a.cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(a.cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		return pgRepo.NewURLRepository(db), nil
	default:
		return fileRepo.NewURLRepository(a.cfg.Storage.FilePath, a.logger.Logger), nil
	}
}

// Close stops the registry and releases the store in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Handler returns the HTTP API backed by the application's use case.
func (a *App) Handler() http.Handler {
	return deliveryHTTP.NewRouter(
		a.logger,
		deliveryHTTP.RouterConfig{
			AllowedOrigins:   a.cfg.CORS.AllowedOrigins,
			AllowCredentials: a.cfg.CORS.AllowCredentials,
			FrontendURL:      a.cfg.FrontendURL,
		},
		a.URLUseCase,
		qrcode.NewEncoder(qrcode.DefaultSize),
	)
}

// Serve runs the HTTP server until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	const op = "app.App.Serve"

	server := &http.Server{
		Addr:           a.cfg.HTTPServer.Addr(),
		Handler:        a.Handler(),
		ReadTimeout:    a.cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   a.cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    a.cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: a.cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server started", slog.String("addr", server.Addr), slog.String("storage", a.cfg.Storage.Driver))

		var err error

		switch a.cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(a.cfg.HTTPServer.CertFile, a.cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		a.logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// Run builds the application for cfg and serves HTTP until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx)
}
