// Package internal assembles the bndy portal application.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/bndy-dev/bndy-portal/internal/config"
	"github.com/bndy-dev/bndy-portal/internal/crypto"
	"github.com/bndy-dev/bndy-portal/internal/identity"
	"github.com/bndy-dev/bndy-portal/internal/idp"
	"github.com/bndy-dev/bndy-portal/internal/log"
	"github.com/bndy-dev/bndy-portal/internal/metrics"
	"github.com/bndy-dev/bndy-portal/internal/server"
	"github.com/bndy-dev/bndy-portal/internal/storage"
)

// Session creation is rate limited per client IP to slow down token
// guessing and runaway retry loops
const (
	sessionCreateRPS   = rate.Limit(5)
	sessionCreateBurst = 10
)

// Portal represents the complete portal application
type Portal struct {
	config     config.Config
	httpServer *server.HTTPServer
	storage    storage.Storage
	cancelBg   context.CancelFunc
}

// NewPortal creates a portal application with all dependencies built
func NewPortal(ctx context.Context, cfg config.Config) (*Portal, error) {
	log.LogInfoWithFields("portal", "Building portal application", map[string]any{
		"baseURL": cfg.Portal.BaseURL,
		"storage": string(cfg.Portal.Auth.Storage),
	})

	if _, err := url.Parse(cfg.Portal.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	provider, err := identity.NewSignerProvider([]byte(cfg.Portal.Auth.SigningKey))
	if err != nil {
		return nil, fmt.Errorf("failed to setup identity provider: %w", err)
	}

	// Background cleanup of revoked-session entries
	bgCtx, cancelBg := context.WithCancel(context.Background())
	provider.StartRevocationCleanup(bgCtx, config.RevocationCleanupInterval)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)

	mux := buildHTTPHandler(cfg, store, provider, recorder, registry)

	handler := server.ChainMiddleware(mux,
		server.NewCORSMiddleware(cfg.Portal.AllowedOrigins),
		server.NewLoggerMiddleware("http", recorder),
		server.NewRecoverMiddleware("http"),
	)

	return &Portal{
		config:     cfg,
		httpServer: server.NewHTTPServer(handler, cfg.Portal.Addr),
		storage:    store,
		cancelBg:   cancelBg,
	}, nil
}

// buildHTTPHandler wires all routes
func buildHTTPHandler(
	cfg config.Config,
	store storage.Storage,
	provider *identity.SignerProvider,
	recorder metrics.Recorder,
	registry *prometheus.Registry,
) *http.ServeMux {
	mux := http.NewServeMux()

	sessionHandler := server.NewSessionHandler(provider, store, recorder, cfg.Portal.Auth.CookieDomain)
	createLimiter := server.NewRateLimitMiddleware(sessionCreateRPS, sessionCreateBurst)

	mux.Handle("POST /api/auth/session", createLimiter(http.HandlerFunc(sessionHandler.CreateSession)))
	mux.HandleFunc("GET /api/auth/session", sessionHandler.ValidateSession)
	mux.HandleFunc("DELETE /api/auth/session", sessionHandler.ClearSession)

	if google := cfg.Portal.Auth.Google; google != nil {
		stateSigner := crypto.NewTokenSigner([]byte(cfg.Portal.Auth.SigningKey), identity.DefaultIDTokenTTL)
		googleHandler := server.NewGoogleHandler(
			idp.NewGoogleProvider(google.ClientID, string(google.ClientSecret), google.RedirectURI),
			provider,
			store,
			&stateSigner,
		)
		mux.HandleFunc("GET /api/auth/google/login", googleHandler.Login)
		mux.HandleFunc("GET /api/auth/google/callback", googleHandler.Callback)
	}

	sessionAuth := server.NewSessionAuthMiddleware(provider)
	profileHandler := server.NewProfileHandler(store)
	mux.Handle("GET /api/profile", sessionAuth(http.HandlerFunc(profileHandler.GetProfile)))
	mux.Handle("PUT /api/profile", sessionAuth(http.HandlerFunc(profileHandler.UpdateProfile)))

	if admin := cfg.Portal.Admin; admin != nil && admin.Enabled {
		adminHandler := server.NewAdminHandler(*admin, store)
		mux.HandleFunc("GET /api/admin/users", adminHandler.RequireBasicAuth(adminHandler.ListUsers))
		mux.HandleFunc("DELETE /api/admin/users/{uid}", adminHandler.RequireBasicAuth(adminHandler.DeleteUser))
	}

	mux.Handle("GET /health", server.NewHealthHandler())
	mux.Handle("GET /metrics", metrics.Handler(registry))

	return mux
}

// Run starts the portal and blocks until shutdown
func (p *Portal) Run() error {
	log.LogInfoWithFields("portal", "Starting portal application", map[string]any{
		"addr": p.config.Portal.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := p.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("portal", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("portal", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("portal", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	p.cancelBg()

	if err := p.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("portal", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if err := p.storage.Close(); err != nil {
		log.LogWarnWithFields("portal", "storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("portal", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStorage creates the user-profile store from configuration
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	auth := cfg.Portal.Auth
	if auth.Storage == config.StorageKindFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    auth.GCPProject,
			"database":   auth.FirestoreDatabase,
			"collection": auth.FirestoreCollection,
		})
		return storage.NewFirestoreStorage(ctx, auth.GCPProject, auth.FirestoreDatabase, auth.FirestoreCollection)
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}
