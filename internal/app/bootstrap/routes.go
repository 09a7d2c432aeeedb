// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/pilitosync/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/pilitosync/internal/app/features/errors"
	healthfeature "github.com/dalemusser/pilitosync/internal/app/features/health"
	loginfeature "github.com/dalemusser/pilitosync/internal/app/features/login"
	logoutfeature "github.com/dalemusser/pilitosync/internal/app/features/logout"
	"github.com/dalemusser/pilitosync/internal/app/features/pilitosettings"
	appresources "github.com/dalemusser/pilitosync/internal/app/resources"
	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	optionstore "github.com/dalemusser/pilitosync/internal/app/store/options"
	"github.com/dalemusser/pilitosync/internal/app/store/ratelimit"
	"github.com/dalemusser/pilitosync/internal/app/store/sessions"
	userstore "github.com/dalemusser/pilitosync/internal/app/store/users"
	"github.com/dalemusser/pilitosync/internal/app/system/actions"
	"github.com/dalemusser/pilitosync/internal/app/system/adminmenu"
	"github.com/dalemusser/pilitosync/internal/app/system/auditlog"
	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/authz"
	"github.com/dalemusser/pilitosync/internal/app/system/nonce"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/app/system/pilito"
	"github.com/dalemusser/pilitosync/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for the console.
//
// HTML routes go through session loading and CSRF protection. The admin
// action endpoint is exempt from CSRF because every action carries its
// own one-time authorization value, checked by the dispatcher.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	timeouts.Configure(timeouts.Config{Upstream: appCfg.PilitoHTTPTimeout})

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on every request so role changes and disabled
	// accounts take effect immediately; closed sessions revoke cookies.
	sessionsStore := sessions.New(deps.MongoDatabase, logger)
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))
	sessionMgr.SetSessionTracker(sessionsStore)

	// Dev mode enables template reloading.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	auditStore := audit.New(deps.MongoDatabase)
	auditLogger := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	// Options and the Pilito client
	registry := options.NewRegistry()
	if err := pilitosettings.RegisterOptions(registry); err != nil {
		logger.Error("option registration failed", zap.Error(err))
		return nil, err
	}
	optionSvc := options.NewService(registry, optionstore.New(deps.MongoDatabase))
	pilitoClient := pilito.New(pilitosettings.Source(optionSvc), logger,
		pilito.WithHTTPClient(&http.Client{Timeout: appCfg.PilitoHTTPTimeout}))

	nonces, err := nonce.New(appCfg.NonceKey, appCfg.NonceTTL)
	if err != nil {
		logger.Error("nonce manager init failed", zap.Error(err))
		return nil, err
	}

	// Admin screens and their actions
	menu := adminmenu.NewRegistry()
	actionTable := actions.NewTable()
	settingsHandler := pilitosettings.NewHandler(optionSvc, menu, nonces, pilitoClient, errLog, auditLogger, logger)
	if err := settingsHandler.Register(actionTable); err != nil {
		logger.Error("settings screen registration failed", zap.Error(err))
		return nil, err
	}
	auditHandler := auditlogfeature.NewHandler(auditStore, menu, errLog, logger)
	if err := auditHandler.Register(); err != nil {
		logger.Error("audit log screen registration failed", zap.Error(err))
		return nil, err
	}
	if err := actionTable.RequireRegistered(pilitosettings.ActionTestConnection); err != nil {
		return nil, err
	}
	dispatcher := actions.NewDispatcher(actionTable, nonces, sessionToken, logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(sessionMgr.LoadSessionUser)
	r.Use(csrfMiddleware(appCfg, secure, logger))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	healthHandler := healthfeature.NewHandler(deps.MongoClient, func(ctx context.Context) (bool, error) {
		s, err := pilitosettings.Load(ctx, optionSvc)
		return s.HasToken(), err
	}, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	var lockout loginfeature.Lockout
	if appCfg.RateLimitEnabled {
		lockout = ratelimit.New(deps.MongoDatabase, ratelimit.Policy{
			MaxAttempts: appCfg.RateLimitLoginAttempts,
			Window:      appCfg.RateLimitLoginWindow,
			Lockout:     appCfg.RateLimitLoginLockout,
		})
	}
	loginHandler := loginfeature.NewHandler(userstore.New(deps.MongoDatabase), sessionMgr, loginfeature.Config{
		Lockout:    lockout,
		Sessions:   sessionsStore,
		SessionTTL: appCfg.SessionMaxAge,
		Home:       pilitosettings.Path,
	}, errLog, auditLogger, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))
	r.Mount("/logout", logoutfeature.Routes(logoutfeature.NewHandler(sessionMgr, auditLogger, sessionsStore, logger)))

	r.Route("/admin", func(r chi.Router) {
		r.Handle("/ajax", dispatcher)
		r.Route("/pilito-settings", func(r chi.Router) {
			r.Use(sessionMgr.RequireSignedIn)
			r.Use(authz.RequireCapability(authz.CapManageShop))
			settingsHandler.MountRoutes(r)
		})
		r.Route("/audit-log", func(r chi.Router) {
			r.Use(sessionMgr.RequireSignedIn)
			r.Use(authz.RequireCapability(authz.CapManageOptions))
			auditHandler.MountRoutes(r)
		})
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, pilitosettings.Path, http.StatusSeeOther)
	})

	errHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errHandler.Forbidden)
	r.NotFound(errHandler.NotFound)

	return r, nil
}

// sessionToken identifies the caller for action nonces. Anonymous callers
// have no session and are turned away by the dispatcher.
func sessionToken(r *http.Request) (string, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok || u.SessionToken() == "" {
		return "", false
	}
	return u.SessionToken(), true
}

// csrfExempt lists paths that skip CSRF validation.
var csrfExempt = map[string]bool{
	pilitosettings.AjaxURL: true,
}

// csrfMiddleware builds gorilla/csrf protection for HTML forms.
// Cookie name "pilitosync_csrf" avoids collisions with other services on
// the same domain.
func csrfMiddleware(appCfg AppConfig, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("pilitosync_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	// In dev mode, trust localhost origins.
	if !secure {
		opts = append(opts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		opts = append(opts, csrf.Domain(appCfg.SessionDomain))
	}
	protect := csrf.Protect([]byte(appCfg.CSRFKey), opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if csrfExempt[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			protected.ServeHTTP(w, req)
		})
	}
}
