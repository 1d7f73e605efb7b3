// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	notificationstore "github.com/dalemusser/taskhub/internal/app/store/notifications"
	organizationstore "github.com/dalemusser/taskhub/internal/app/store/organizations"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/notify"
	"github.com/dalemusser/taskhub/internal/app/system/position"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/reorder"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/app/system/workers"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Services are the long-lived objects shared by handlers and torn down in
// Shutdown.
type Services struct {
	Sessions   *auth.SessionManager
	Registry   *realtime.Registry
	Realtime   *realtime.Server
	Alloc      *position.Allocator
	Reorder    *reorder.Coordinator
	Dispatcher *notify.Dispatcher
	Limiter    *ratelimit.LoginLimiter
	Sweeper    *workers.ConnSweeper
}

// Startup runs after connections and indexes are in place and before the
// handler is built. It builds the session manager, the real-time core and
// the connection sweeper, and seeds the first admin when configured.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Handshake: appCfg.WSHandshakeTimeout})

	secure := coreCfg.Env == "prod"
	svc, err := newServices(appCfg, deps, secure, logger)
	if err != nil {
		return err
	}
	*deps.Services = *svc

	if appCfg.SeedAdminEmail != "" {
		if err := ensureSeedAdmin(ctx, deps.MongoDatabase, appCfg, logger); err != nil {
			logger.Error("seed admin failed", zap.Error(err))
			return err
		}
	}

	deps.Services.Sweeper.Start()
	return nil
}

// newServices wires the stores into the session manager and the real-time
// core. Nothing here starts a goroutine.
func newServices(appCfg AppConfig, deps DBDeps, secure bool, logger *zap.Logger) (*Services, error) {
	sessions := sessionstore.New(deps.Redis)
	sm, err := auth.NewSessionManager(sessions, appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// LoadSessionUser re-reads the user on every request so role changes and
	// disabled accounts take effect immediately.
	sm.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	users := userstore.New(deps.MongoDatabase)
	tasks := taskstore.New(deps.MongoDatabase)

	registry := realtime.NewRegistry(logger.Named("realtime"))
	validator := realtime.NewValidator(sm, sessions, users, appCfg.WSAllowedOrigins, logger.Named("realtime"))
	rtCfg := realtime.Config{
		HandshakeTimeout:  appCfg.WSHandshakeTimeout,
		HeartbeatInterval: appCfg.WSHeartbeatInterval,
		SendBuffer:        appCfg.WSSendBuffer,
	}
	server := realtime.NewServer(validator, registry, rtCfg, logger.Named("realtime"))

	alloc := position.New(logger.Named("position"))
	coord := reorder.NewCoordinator(tasks, alloc, logger.Named("reorder")).
		WithTransactions(func(ctx context.Context, fn func(context.Context) error) error {
			return txn.Run(ctx, deps.MongoDatabase, logger, fn)
		})
	dispatcher := notify.NewDispatcher(tasks, users, users, notificationstore.New(deps.MongoDatabase), registry, logger.Named("notify"))

	sweepEvery := appCfg.WSSweepInterval
	if sweepEvery <= 0 {
		sweepEvery = rtCfg.IdleTimeout()
	}
	sweeper := workers.NewConnSweeper(server, logger.Named("sweeper"), sweepEvery, rtCfg.IdleTimeout())

	return &Services{
		Sessions:   sm,
		Registry:   registry,
		Realtime:   server,
		Alloc:      alloc,
		Reorder:    coord,
		Dispatcher: dispatcher,
		Limiter:    ratelimit.NewLoginLimiter(deps.Redis),
		Sweeper:    sweeper,
	}, nil
}

// ensureSeedAdmin creates the seed organization and an admin inside it.
// An existing account with the seed email is left as is, apart from being
// placed in the organization when it has none.
func ensureSeedAdmin(ctx context.Context, db *mongo.Database, appCfg AppConfig, logger *zap.Logger) error {
	orgs := organizationstore.New(db)
	users := userstore.New(db)

	org, err := orgs.GetByName(ctx, appCfg.SeedOrganization)
	if errors.Is(err, mongo.ErrNoDocuments) {
		org, err = orgs.Create(ctx, models.Organization{Name: appCfg.SeedOrganization})
		if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
			org, err = orgs.GetByName(ctx, appCfg.SeedOrganization)
		}
		if err == nil {
			logger.Info("seed organization created", zap.String("org_id", org.ID.Hex()))
		}
	}
	if err != nil {
		return fmt.Errorf("seed organization: %w", err)
	}

	existing, err := users.GetByEmail(ctx, appCfg.SeedAdminEmail)
	switch {
	case err == nil:
		if existing.OrganizationID == nil {
			if err := users.SetOrganization(ctx, existing.ID, org.ID); err != nil {
				return fmt.Errorf("seed admin organization: %w", err)
			}
			logger.Info("seed admin placed in organization", zap.String("user_id", existing.ID.Hex()))
		}
		return nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("seed admin lookup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(appCfg.SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	orgID := org.ID
	u, err := users.Create(ctx, models.User{
		FullName:       "Administrator",
		Email:          appCfg.SeedAdminEmail,
		PasswordHash:   string(hash),
		Role:           models.RoleAdmin,
		OrganizationID: &orgID,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// Another instance won the race.
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin create: %w", err)
	}
	logger.Info("seed admin created", zap.String("user_id", u.ID.Hex()), zap.String("email", u.Email))
	return nil
}
