package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/legalcrm/legalcrm/internal/directory"
	httpmiddleware "github.com/legalcrm/legalcrm/internal/http"
	"github.com/legalcrm/legalcrm/internal/logger"
	"github.com/legalcrm/legalcrm/internal/server"
	postgresstore "github.com/legalcrm/legalcrm/internal/store/postgres"
	"github.com/legalcrm/legalcrm/internal/telemetry"
	"github.com/legalcrm/legalcrm/internal/tenantdb"
	"github.com/rs/cors"
)

type ServerCmd struct {
	// Server configuration
	Listen      string   `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"LEGALCRM_LISTEN"`
	AdminPrefix string   `help:"path prefix for the administrative API, exempt from tenant resolution" default:"/api/admin" env:"LEGALCRM_ADMIN_PREFIX"`
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"*" env:"LEGALCRM_CORS_ORIGINS"`

	// Operational modes
	Tracing bool `help:"enable OpenTelemetry export" default:"false" env:"LEGALCRM_TRACING"`

	// Database configuration
	Postgres   PostgresFlags   `embed:"" prefix:"postgres-"`
	TenantPool TenantPoolFlags `embed:"" prefix:"tenant-pool-"`
}

type PostgresFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Shared (public schema) pool configuration
	MaxConns        int32 `help:"maximum number of connections in the shared pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in the shared pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run directory migrations on startup" default:"false" env:"LEGALCRM_POSTGRES_AUTO_MIGRATE"`
}

func (f *PostgresFlags) Validate() error {
	if f.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// TenantPoolFlags is the pool-sizing policy applied to every per-tenant
// connection handle.
type TenantPoolFlags struct {
	MaxConns       int32 `help:"maximum physical connections per tenant handle" default:"20"`
	MinConns       int32 `help:"minimum idle connections per tenant handle" default:"0"`
	AcquireTimeout int32 `help:"connection acquire timeout in seconds" default:"30"`
	IdleTimeout    int32 `help:"connection idle timeout in seconds" default:"10"`
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, "legalcrm-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// The shared pool serves the tenant directory and provisioning DDL.
	// Retried with backoff so the server survives a database that comes up
	// after it does.
	poolCfg := &postgresstore.PoolConfig{
		ConnString:      c.Postgres.ConnString,
		MaxConns:        c.Postgres.MaxConns,
		MinConns:        c.Postgres.MinConns,
		MaxConnLifetime: c.Postgres.MaxConnLifetime,
		MaxConnIdleTime: c.Postgres.MaxConnIdleTime,
	}
	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		return postgresstore.NewPool(ctx, poolCfg)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if c.Postgres.AutoMigrate {
		if err := postgresstore.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantStore := postgresstore.NewTenantStore(pool)
	provisioner := tenantdb.NewProvisioner(pool)
	dir := directory.New(tenantStore, provisioner)

	cache := tenantdb.NewCache(tenantdb.NewPgxOpener(tenantdb.PoolSettings{
		ConnString:     c.Postgres.ConnString,
		MaxConns:       c.TenantPool.MaxConns,
		MinConns:       c.TenantPool.MinConns,
		AcquireTimeout: c.TenantPool.AcquireTimeout,
		IdleTimeout:    c.TenantPool.IdleTimeout,
	}), provisioner)

	resolver := tenantdb.NewResolver(tenantStore, cache, c.AdminPrefix)

	apiServer := server.NewServer(dir, c.AdminPrefix)

	handler := httpmiddleware.TenantMiddleware(resolver)(apiServer.Handler())
	handler = cors.New(cors.Options{
		AllowedOrigins: c.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(handler)
	handler = logger.Requests(log)(handler)

	srv := configureHTTPServer(c.Listen, handler)

	// Shutdown is a drain: stop accepting requests, let in-flight ones
	// finish, then close every tenant handle.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("Listening for HTTP connections")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cache.CloseAll(shutdownCtx)

	return nil
}
