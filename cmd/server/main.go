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

	"go-cms-app/internal/auth"
	"go-cms-app/internal/cache"
	"go-cms-app/internal/config"
	"go-cms-app/internal/data"
	"go-cms-app/internal/handler"
	"go-cms-app/internal/logger"
	"go-cms-app/internal/middleware"
	"go-cms-app/internal/service"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/afero"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log)

	// --- Pre-flight Checks ---
	if cfg.Session.SecretKey == "" || cfg.Session.SecretKey == "CHANGE_ME_IN_PRODUCTION_SECRET!!" {
		log.Fatal(errors.New("session secret key not set"), "Please set a secure CMS_SESSION_SECRETKEY environment variable.")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("CMS_AUTH_JWT_SECRET is not set; bearer tokens are disabled")
	}

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	if err := data.ApplyMigrations(cfg.DB); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info("Migrations applied successfully.")

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Cache Initialization ---
	log.Info("Initializing SQLite cache...")
	kv, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer kv.Close()
	log.Info("Cache initialized.")

	// --- Session Management Setup ---
	sessionManager := scs.New()
	sessionManager.Store = sessionStore(cfg.DB.Driver, db)
	sessionManager.Lifetime = time.Duration(cfg.Session.Lifetime) * time.Hour
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = cfg.Server.TLS.Enabled

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	enforcer, err := auth.NewEnforcer(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err, "Failed to initialize enforcer")
	}
	auth.SeedDefaultPolicies(enforcer, log)

	var oidc handler.OIDCProvider
	if cfg.OIDC.IssuerURL != "" {
		authenticator, err := auth.NewAuthenticator(context.Background(), &cfg.OIDC)
		if err != nil {
			log.Fatal(err, "Failed to initialize authenticator")
		}
		oidc = authenticator
	} else {
		log.Info("OIDC issuer not configured; single sign-on is disabled")
	}
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Minute)
	log.Info("Auth components initialized and policies seeded.")

	// --- Asset Storage ---
	if err := os.MkdirAll(cfg.Assets.Dir, 0o755); err != nil {
		log.Fatal(err, "Failed to create asset directory")
	}
	blobs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Assets.Dir)

	// --- Dependency Injection and Handler Initialization ---
	// Initialize the application layers, injecting dependencies from top to bottom.
	pageService := service.NewPageService(data.NewSQLPageRepository(db), log, service.OptionsFromConfig(cfg.Tree, cfg.Content))
	userService := service.NewUserService(data.NewUserRepository(db), kv, log)
	assetService := service.NewAssetService(data.NewAssetRepository(db), blobs, log)

	pageHandler := handler.NewPageHandler(pageService, log)
	authHandler := handler.NewAuthHandler(userService, sessionManager, tokens, oidc, log)
	assetHandler := handler.NewAssetHandler(assetService, log)

	loginLimiter := middleware.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)

	// --- Router Setup ---
	router := handler.NewRouter(pageHandler, authHandler, assetHandler, handler.Middleware{
		Session:   sessionManager.LoadAndSave,
		Authn:     middleware.Authenticate(sessionManager, tokens),
		Authz:     middleware.Authorizer(enforcer),
		AuthLimit: loginLimiter.Limit,
		Errors:    middleware.Error(log),
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go purgeCache(ctx, kv, time.Hour, log)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}

// sessionStore picks the scs store matching the configured database driver.
// NewDB has already rejected unknown drivers.
func sessionStore(driver string, db *sqlx.DB) scs.Store {
	switch driver {
	case data.DriverMySQL:
		return mysqlstore.New(db.DB)
	case data.DriverPostgres:
		return postgresstore.New(db.DB)
	default:
		return sqlite3store.New(db.DB)
	}
}

// purgeCache drops expired cache rows every interval until ctx is done.
func purgeCache(ctx context.Context, kv *cache.Cache, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := kv.PurgeExpired(ctx)
			if err != nil {
				log.Error(err, "Failed to purge expired cache entries")
				continue
			}
			if n > 0 {
				log.Debug(fmt.Sprintf("Purged %d expired cache entries", n))
			}
		}
	}
}
