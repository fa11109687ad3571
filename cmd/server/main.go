// Command server runs the HTTP API over the demo resource set, backed by
// PostgreSQL when a database URL is configured and by the in-memory layer
// with seed data otherwise.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/strata-api/strata/internal/api/middleware"
	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/domain"
	"github.com/strata-api/strata/internal/platform/logger"
	"github.com/strata-api/strata/internal/platform/postgres"
	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := schema.NewRegistry()
	defs := domain.RegisterSchemas(reg)

	layers, cleanup, err := buildStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	router := chi.NewRouter()
	router.Use(middleware.Trace(log))
	if cfg.Auth.JWTSecret != "" {
		auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, log)
		router.Use(writeGuard(auth))
	}

	api := resource.New(cfg.API, log, router)
	for _, typeName := range []string{"people", "comments", "articles"} {
		mountResource(api, defs[typeName], layers[typeName])
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildStorage selects the backend: PostgreSQL with migrations applied
// when a URL is configured, the seeded in-memory layer otherwise.
func buildStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (map[string]storage.Layer, func(), error) {
	if cfg.Database.URL == "" {
		log.Info("no database configured, using in-memory storage with seed data")
		stores := domain.NewMemoryStores()
		stores.SeedDemo()
		return map[string]storage.Layer{
			"people":   stores.People,
			"comments": stores.Comments,
			"articles": stores.Articles,
		}, func() {}, nil
	}

	if err := runMigrations(cfg.Database.URL, log); err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	layers := make(map[string]storage.Layer)
	for typeName, table := range domain.PostgresTables() {
		layers[typeName] = postgres.NewLayer(pool, table, log)
	}
	return layers, pool.Close, nil
}

func runMigrations(url string, log *slog.Logger) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("failed to close migration connection", slog.String("error", cerr.Error()))
		}
	}()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

// writeGuard applies the authenticator to mutating verbs only. Reads stay
// public.
func writeGuard(auth *middleware.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := auth.Authenticate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				protected.ServeHTTP(w, r)
			}
		})
	}
}

// mountResource registers the collection, item and relationship routes of
// one resource on its canonical URL layout.
func mountResource(api *resource.API, def *schema.Definition, layer storage.Layer) {
	desc := resource.Descriptor{Schema: def, Storage: layer}
	base := "/" + def.Type

	api.Collection(base, desc, nil)
	api.Item(base+"/{id}", desc, nil)
	if len(def.Relationships) > 0 {
		api.Relationship(base+"/{id}/relationships/{relation}", desc, nil)
	}
}
