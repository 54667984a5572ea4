package daemon

import (
	"context"

	"github.com/waddle-social/app/internal/bridge/engine"
	"github.com/waddle-social/app/internal/bus"
	"github.com/waddle-social/app/internal/config"
	"github.com/waddle-social/app/internal/ingest"
	"github.com/waddle-social/app/internal/lock"
	"github.com/waddle-social/app/internal/logging"
	"github.com/waddle-social/app/internal/outbox"
	"github.com/waddle-social/app/internal/plugin"
	"github.com/waddle-social/app/internal/session"
	"github.com/waddle-social/app/internal/status"
	"github.com/waddle-social/app/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideConfig,
			provideStore,
			provideRegistry,
			provideEngine,
			provideIngestor,
			provideSender,
			NewBridgeService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRegistry(db *store.DB, b *bus.Bus, logger *zap.Logger) *plugin.Registry {
	return plugin.NewRegistry(plugin.NewRefSource(), db, b, logger)
}

func provideEngine(p Params, db *store.DB, b *bus.Bus, registry *plugin.Registry, machine *status.Machine, cfg *config.Config, logger *zap.Logger) *engine.Engine {
	selfJID := cfg.JID
	if selfJID == "" {
		selfJID = p.SessionName + "@localhost"
	}
	return engine.New(selfJID, db, b, registry, machine, cfg, logger)
}

func provideIngestor(db *store.DB, b *bus.Bus, logger *zap.Logger) *ingest.Ingestor {
	return ingest.New(db, b, logger)
}

func provideSender(db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *outbox.Sender {
	// No remote transport is attached yet; delivery succeeds locally so
	// queued messages surface as delivered once the session is online.
	deliverer := outbox.DelivererFunc(func(_ context.Context, entry store.OutboxEntry) error {
		logger.Debug("delivering queued message", zap.String("client_msg_id", entry.ClientMsgID))
		return nil
	})
	return outbox.NewSender(db, deliverer, b, machine, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, in *ingest.Ingestor, sender *outbox.Sender, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start persisting inbound events.
			in.Start()

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Start outbox sender, then bring the session online.
			sender.Start(context.Background())
			if err := machine.Transition(status.Online); err != nil {
				logger.Error("failed to come online", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			in.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
