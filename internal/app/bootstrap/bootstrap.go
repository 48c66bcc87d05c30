package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerpg "warden/contexts/custody/ledger-service/adapters/postgres"

	evidenceexportservice "warden/contexts/custody/evidence-export-service"
	evidencefs "warden/contexts/custody/evidence-export-service/adapters/fs"
	evidencepg "warden/contexts/custody/evidence-export-service/adapters/postgres"
	evidenceworkers "warden/contexts/custody/evidence-export-service/application/workers"

	commandservice "warden/contexts/device-control/command-service"
	commandmemory "warden/contexts/device-control/command-service/adapters/memory"
	commandpg "warden/contexts/device-control/command-service/adapters/postgres"
	commandredis "warden/contexts/device-control/command-service/adapters/redis"
	commandports "warden/contexts/device-control/command-service/ports"
	commandworkers "warden/contexts/device-control/command-service/application/workers"

	keyregistryservice "warden/contexts/device-control/key-registry-service"
	keypg "warden/contexts/device-control/key-registry-service/adapters/postgres"

	stepupservice "warden/contexts/identity-access/stepup-service"
	stepuppg "warden/contexts/identity-access/stepup-service/adapters/postgres"

	geofenceservice "warden/contexts/location-safety/geofence-service"
	geofencepg "warden/contexts/location-safety/geofence-service/adapters/postgres"

	ledgerworkers "warden/contexts/custody/ledger-service/application/workers"

	"warden/internal/platform/config"
	"warden/internal/platform/db"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	watchdog     commandworkers.Watchdog
	feedRelay    ledgerworkers.FeedRelay
	exportRunner evidenceworkers.Runner
	runWatchdog  bool
	runFeedRelay bool
	pollInterval time.Duration
	logger       *slog.Logger
}

type modules struct {
	ledger   ledgerservice.Module
	keys     keyregistryservice.Module
	commands commandservice.Module
	exporter evidenceexportservice.Module
	feed     *messaging.Feed
	push     *messaging.PushChannel
}

func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) (modules, error) {
	feed := messaging.NewFeed(logger)
	push := messaging.NewPushChannel(logger)

	ledgerRepo := ledgerpg.NewRepository(pg.DB, logger)
	ledger := ledgerservice.NewModule(ledgerservice.Dependencies{
		Repository:  ledgerRepo,
		Outbox:      ledgerRepo,
		Publisher:   feed,
		Clock:       ledgerpg.SystemClock{},
		IDGenerator: ledgerpg.UUIDGenerator{},
		Logger:      logger,
	})

	keys := keyregistryservice.NewModule(keyregistryservice.Dependencies{
		Repository: keypg.NewRepository(pg.DB, logger),
		Custody:    ledger.Service,
		Clock:      keypg.SystemClock{},
		Logger:     logger,
	})

	var nonceCache commandports.NonceCache
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		nonceCache = commandredis.NewNonceCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		nonceCache = commandmemory.NewStore()
	}

	commands := commandservice.NewModule(commandservice.Dependencies{
		Repository:    commandpg.NewRepository(pg.DB, logger),
		Keys:          keys.Service,
		Custody:       ledger.Service,
		Pusher:        push,
		Notifier:      &messaging.AlertNotifier{Feed: feed, Logger: logger},
		Oracle:        commandmemory.NewStore(),
		NonceCache:    nonceCache,
		Clock:         commandpg.SystemClock{},
		IDGenerator:   commandpg.UUIDGenerator{},
		StuckAfter:    cfg.WatchdogStuckAfter,
		MaxRetries:    cfg.WatchdogMaxRetries,
		OracleTimeout: cfg.WatchdogOracleTimeout,
		Logger:        logger,
	})

	evidenceRepo, err := evidencepg.NewRepository(pg.DB)
	if err != nil {
		return modules{}, err
	}
	exporter := evidenceexportservice.NewModule(evidenceexportservice.Dependencies{
		Evidence:    evidenceRepo,
		Jobs:        evidenceRepo,
		Blobs:       evidencefs.BlobStore{Dir: cfg.ArchiveDir + "/blobs"},
		Archives:    evidencefs.ArchiveStore{Dir: cfg.ArchiveDir},
		Custody:     ledger.Service,
		Reporter:    ledger.Service,
		Clock:       ledgerpg.SystemClock{},
		IDGenerator: ledgerpg.UUIDGenerator{},
		SigningKey:  []byte(cfg.ExportSigningKey),
		Logger:      logger,
	})

	return modules{
		ledger:   ledger,
		keys:     keys,
		commands: commands,
		exporter: exporter,
		feed:     feed,
		push:     push,
	}, nil
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods, err := buildModules(cfg, pg, logger)
	if err != nil {
		return nil, err
	}

	stepupRepo, err := stepuppg.NewRepository(pg.DB)
	if err != nil {
		return nil, err
	}
	stepup := stepupservice.NewModule(stepupservice.Dependencies{
		Repository:  stepupRepo,
		Custody:     mods.ledger.Service,
		Clock:       stepuppg.SystemClock{},
		IDGenerator: stepuppg.UUIDGenerator{},
		TokenSecret: []byte(cfg.StepUpTokenSecret),
		Logger:      logger,
	})

	geofenceRepo, err := geofencepg.NewRepository(pg.DB)
	if err != nil {
		return nil, err
	}
	geofence := geofenceservice.NewModule(geofenceservice.Dependencies{
		Zones:       geofenceRepo,
		States:      geofenceRepo,
		Custody:     mods.ledger.Service,
		Notifier:    &messaging.ZoneAlertNotifier{Feed: mods.feed, Logger: logger},
		Defense:     mods.commands.Service,
		Clock:       geofencepg.SystemClock{},
		IDGenerator: geofencepg.UUIDGenerator{},
		AutoDefense: cfg.EnableAutoDefense,
		Logger:      logger,
	})

	server := httpserver.New(
		mods.ledger,
		mods.commands,
		stepup,
		geofence,
		mods.exporter,
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods, err := buildModules(cfg, pg, logger)
	if err != nil {
		return nil, err
	}

	return &WorkerApp{
		postgres:     pg,
		watchdog:     mods.commands.Watchdog,
		feedRelay:    mods.ledger.Relay,
		exportRunner: mods.exporter.Runner,
		runWatchdog:  cfg.EnableWatchdog,
		runFeedRelay: cfg.EnableFeedRelay,
		pollInterval: cfg.WatchdogInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.runWatchdog {
			if err := w.watchdog.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.runFeedRelay {
			if err := w.feedRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		if err := w.exportRunner.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
