// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	healthfeature "github.com/dalemusser/taskhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/taskhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/taskhub/internal/app/features/logout"
	notificationsfeature "github.com/dalemusser/taskhub/internal/app/features/notifications"
	tasksfeature "github.com/dalemusser/taskhub/internal/app/features/tasks"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so every service in deps.Services is ready.
//
// The JSON API lives under /login, /logout, /tasks and /notifications; the
// real-time endpoint is GET /ws and load balancers probe /health.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	if svc == nil || svc.Sessions == nil {
		return nil, errors.New("startup did not build services")
	}
	sm := svc.Sessions

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sm.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, svc.Registry, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(userstore.New(deps.MongoDatabase), sm, svc.Limiter, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sm, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sm))

	// Board
	tasksHandler := tasksfeature.NewHandler(deps.MongoDatabase, svc.Alloc, svc.Reorder, svc.Dispatcher, logger)
	r.Mount("/tasks", tasksfeature.Routes(tasksHandler, sm))

	notificationsHandler := notificationsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sm))

	// Real-time. The server authenticates the handshake itself from the
	// session cookie, so it sits outside RequireSignedIn.
	r.Method(http.MethodGet, "/ws", svc.Realtime)

	return r, nil
}
