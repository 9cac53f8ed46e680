package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/auth"
	"github.com/backworld/backworld-server/internal/config"
	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/store"
	"github.com/backworld/backworld-server/internal/store/sqlite"
	transporthttp "github.com/backworld/backworld-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	roomExpiry      time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	// The realtime handshake carries the same JWT the REST API issues.
	verifier := core.VerifierFunc(func(credential string) (int64, string, error) {
		claims, err := authService.ValidateToken(credential)
		if err != nil {
			return 0, "", err
		}
		return claims.UserID, claims.Username, nil
	})

	hub := core.NewHub(st, verifier, logger, core.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatMisses:   cfg.HeartbeatMisses,
		MaxChatLen:        cfg.MaxChatLen,
		MaxWorldLines:     cfg.MaxWorldLines,
	})

	server := transporthttp.NewServer(cfg, hub, hub.Reconciler(), st, authService, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		roomExpiry:      cfg.RoomExpiry,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	go a.sweepExpiredRooms(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
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

// sweepExpiredRooms periodically deletes room rows that have sat
// inactive longer than the configured expiry.
func (a *App) sweepExpiredRooms(ctx context.Context) {
	ticker := time.NewTicker(a.roomExpiry)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := a.store.ExpireInactiveRooms(ctx, a.roomExpiry)
			if err != nil {
				a.log.Warn().Err(err).Msg("room expiry sweep failed")
				continue
			}
			if deleted > 0 {
				a.log.Info().Int64("deleted", deleted).Msg("expired inactive rooms")
			}
		}
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
