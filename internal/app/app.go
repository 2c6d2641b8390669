package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/auth"
	"github.com/driftboard/presenced/internal/config"
	"github.com/driftboard/presenced/internal/core"
	"github.com/driftboard/presenced/internal/metrics"
	transporthttp "github.com/driftboard/presenced/internal/transport/http"
)

const localTokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	registry        *core.Registry
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	verifier, err := buildVerifier(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	registry := core.NewRegistry(logger, m)
	server := transporthttp.NewServer(registry, verifier, m, cfg, logger)

	logger.Info().Str("auth_mode", cfg.AuthMode).Msg("presence server configured")

	return &App{
		server:          server,
		registry:        registry,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

func buildVerifier(cfg config.Config) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeToken:
		return auth.NewJWTVerifier(&auth.JWTConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      localTokenTTL,
		}), nil
	case config.AuthModeRemote, "":
		// A missing verify_base_url is deliberately not rejected here: the
		// handshake reports it per connection as SERVER_CONFIG_ERROR.
		return auth.NewHTTPVerifier(cfg.VerifyBaseURL, cfg.VerifyTimeout), nil
	default:
		return nil, fmt.Errorf("unknown auth_mode %q", cfg.AuthMode)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup stops every room. Presence state is volatile and is simply dropped.
func (a *App) cleanup() {
	a.registry.Close()
	a.log.Info().Msg("room registry closed")
}
