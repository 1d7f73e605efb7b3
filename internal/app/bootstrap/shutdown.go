// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, closes live sockets with 1001, then
// releases Redis and MongoDB. It keeps going after a failure and returns
// every error it saw.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var errs []error

	if svc := deps.Services; svc != nil {
		if svc.Sweeper != nil {
			svc.Sweeper.Stop()
		}
		if svc.Realtime != nil {
			logger.Info("closing WebSocket connections", zap.Int("open", svc.Registry.Count()))
			if err := svc.Realtime.Close(ctx); err != nil {
				logger.Warn("WebSocket shutdown incomplete", zap.Error(err))
				errs = append(errs, err)
			}
		}
	}

	if deps.Redis != nil {
		logger.Info("closing Redis client")
		if err := deps.Redis.Close(); err != nil {
			logger.Error("Redis close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
