package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"hardcore/internal/bootstrap/config"
	"hardcore/internal/bootstrap/database"
	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/notify"
	"hardcore/internal/infrastructure/persistence/repository"
	"hardcore/internal/infrastructure/persistence/schema"
	"hardcore/internal/infrastructure/persistence/uow"
	"hardcore/internal/infrastructure/process"
	"hardcore/internal/infrastructure/session"
	"hardcore/internal/infrastructure/writequeue"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/command"
	"hardcore/internal/usecase/confirmation"
	"hardcore/internal/usecase/lifecycle"
	"hardcore/internal/usecase/messages"
	"hardcore/internal/usecase/reminder"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideRuntime),
	fx.Provide(provideRegistry),
	fx.Provide(provideDatabase),
	fx.Provide(provideStateStore),
	fx.Provide(
		fx.Annotate(
			repository.NewDirectory,
			fx.As(new(ports.Directory)),
		),
	),
	fx.Provide(
		fx.Annotate(
			repository.NewWallet,
			fx.As(new(ports.Wallet)),
		),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideWriteQueue),
	fx.Provide(provideLifecycle),
	fx.Provide(provideTracker),
	fx.Provide(provideHub),
	fx.Provide(provideNotifier),
	fx.Provide(provideScheduler),
	fx.Provide(provideCommandHandler),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideRuntime(ctx context.Context, cfg config.Config) Runtime {
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.Log.Level))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("server_name", cfg.Settings.ServerName))
	return Runtime{Ctx: ctx}
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func provideDatabase(lc fx.Lifecycle, rt Runtime, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(rt.Ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

// provideStateStore never fails: a records table that cannot be created or
// verified puts the host in degraded mode.
func provideStateStore(rt Runtime, cfg config.Config, db *gorm.DB) ports.StateStore {
	logCtx := logging.WithAttrs(rt.Ctx, slog.String("component", "bootstrap.fx"))

	if err := schema.Ensure(logCtx, db, cfg.Database.TableName); err != nil {
		logging.Error(
			logCtx,
			"state store unavailable, running degraded",
			slog.String("table", cfg.Database.TableName),
			slog.Any("err", errs.Loggable(err)),
		)
		return repository.NewDisabledStateStore(err)
	}
	return repository.NewStateStore(db, cfg.Database.TableName)
}

func provideWriteQueue(lc fx.Lifecycle, rt Runtime, cfg config.Config, registry *prometheus.Registry) *writequeue.Queue {
	queue := writequeue.New(rt.Ctx, writequeue.Options{
		Workers:     cfg.WriteQueue.Workers,
		Buffer:      cfg.WriteQueue.Buffer,
		TaskTimeout: cfg.WriteQueue.TaskTimeout(),
		Registry:    registry,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return queue.Close(ctx)
		},
	})
	return queue
}

func provideLifecycle(store ports.StateStore, queue *writequeue.Queue, cfg config.Config) *lifecycle.Service {
	return lifecycle.NewService(store, queue, lifecycle.Options{
		DefaultGroup: cfg.Settings.ServerName,
		Cooldown:     cfg.Settings.Cooldown(),
	})
}

func provideTracker(lc fx.Lifecycle, cfg config.Config, registry *prometheus.Registry) *confirmation.Tracker {
	tracker := confirmation.NewTracker(confirmation.Options{
		Window:   cfg.Settings.ConfirmWindow(),
		Registry: registry,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			tracker.Close()
			return nil
		},
	})
	return tracker
}

func provideHub(lc fx.Lifecycle) *session.Hub {
	hub := session.NewHub()
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

// provideNotifier delivers locally through the hub and the log. With a NATS
// url, notifications also reach sessions on the other hosts.
func provideNotifier(lc fx.Lifecycle, rt Runtime, cfg config.Config, hub *session.Hub) (ports.Notifier, error) {
	fanout := notify.Fanout{hub, notify.LogNotifier{}}
	if cfg.Notify.NatsURL == "" {
		return fanout, nil
	}

	natsNotifier, err := notify.Connect(rt.Ctx, cfg.Notify.NatsURL, cfg.Notify.Subject)
	if err != nil {
		return nil, err
	}
	sub, err := natsNotifier.Relay(rt.Ctx, hub)
	if err != nil {
		natsNotifier.Close()
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = sub.Unsubscribe()
			natsNotifier.Close()
			return nil
		},
	})
	return append(fanout, natsNotifier), nil
}

func provideScheduler(
	lc fx.Lifecycle,
	rt Runtime,
	cfg config.Config,
	service *lifecycle.Service,
	hub *session.Hub,
	notifier ports.Notifier,
	registry *prometheus.Registry,
) *reminder.Scheduler {
	scheduler := reminder.NewScheduler(rt.Ctx, service, hub, notifier, reminder.Options{
		Interval:  cfg.Settings.ReminderInterval(),
		Threshold: cfg.Settings.ReminderThreshold(),
		Catalog:   messages.Catalog{Prefix: cfg.Settings.MessagePrefix},
		Registry:  registry,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			scheduler.Close()
			return nil
		},
	})
	return scheduler
}

type commandParams struct {
	fx.In

	Config     config.Config
	Lifecycle  *lifecycle.Service
	Tracker    *confirmation.Tracker
	Scheduler  *reminder.Scheduler
	Hub        *session.Hub
	Directory  ports.Directory
	Wallet     ports.Wallet
	UnitOfWork ports.UnitOfWork
	Notifier   ports.Notifier
}

func provideCommandHandler(p commandParams) *command.Handler {
	return command.NewHandler(command.Deps{
		Lifecycle:     p.Lifecycle,
		Confirmations: p.Tracker,
		Reminders:     p.Scheduler,
		Presence:      p.Hub,
		Directory:     p.Directory,
		Wallet:        p.Wallet,
		UnitOfWork:    p.UnitOfWork,
		Notifier:      p.Notifier,
		Runner:        process.NewRunner(process.DefaultTimeout),
		Catalog:       messages.Catalog{Prefix: p.Config.Settings.MessagePrefix},
		Settings: command.Settings{
			ReviveNeed:            p.Config.Settings.ReviveNeed,
			ReviveProcessCommands: p.Config.Settings.ReviveProcessCommands,
			KeepInventory:         p.Config.Settings.KeepInventory,
		},
	})
}

type appParams struct {
	fx.In

	Runtime   Runtime
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

func provideApp(p appParams) *App {
	return &App{
		Ctx:       p.Runtime.Ctx,
		Config:    p.Config,
		DB:        p.DB,
		Registry:  p.Registry,
		Store:     p.Store,
		Queue:     p.Queue,
		Lifecycle: p.Lifecycle,
		Commands:  p.Commands,
		Hub:       p.Hub,
		Wallet:    p.Wallet,
		Directory: p.Directory,
	}
}
