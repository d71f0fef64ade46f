package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"hardcore/internal/bootstrap/config"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/persistence/repository"
	"hardcore/internal/infrastructure/persistence/schema"
	"hardcore/internal/infrastructure/session"
	"hardcore/internal/infrastructure/writequeue"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/command"
	"hardcore/internal/usecase/lifecycle"
)

// Runtime carries the context every long-lived component logs through. Its
// logger honours log.level from the loaded config.
type Runtime struct {
	Ctx context.Context
}

// App is what cmd handlers receive once the fx graph has started.
type App struct {
	Ctx       context.Context
	Config    config.Config
	DB        *gorm.DB
	Registry  *prometheus.Registry
	Store     ports.StateStore
	Queue     *writequeue.Queue
	Lifecycle *lifecycle.Service
	Commands  *command.Handler
	Hub       *session.Hub
	Wallet    ports.Wallet
	Directory ports.Directory
}

// Degraded reports whether the records table failed its startup check.
func (a *App) Degraded() bool {
	_, disabled := a.Store.(*repository.DisabledStateStore)
	return disabled
}

// InitSchema creates or verifies every table. Unlike startup it fails
// loudly instead of falling back to degraded mode.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema check", slog.String("table", a.Config.Database.TableName))

	if err := schema.Ensure(logCtx, a.DB, a.Config.Database.TableName); err != nil {
		return errs.Wrap(err, "ensure schema")
	}

	logging.Info(logCtx, "schema check completed")
	return nil
}

// Flush waits for queued writes so one-shot commands exit with their
// writes applied.
func (a *App) Flush(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return a.Queue.Close(ctx)
}
