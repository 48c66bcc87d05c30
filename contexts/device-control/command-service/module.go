package commandservice

import (
	"log/slog"
	"time"

	httpadapter "warden/contexts/device-control/command-service/adapters/http"
	"warden/contexts/device-control/command-service/adapters/memory"
	"warden/contexts/device-control/command-service/application"
	"warden/contexts/device-control/command-service/application/workers"
	"warden/contexts/device-control/command-service/ports"
)

type Module struct {
	Service  application.Service
	Verifier application.Verifier
	Watchdog workers.Watchdog
	Handler  httpadapter.Handler
	Store    *memory.Store
}

type Dependencies struct {
	Repository    ports.CommandRepository
	Keys          ports.DeviceKeyProvider
	Custody       ports.CustodyRecorder
	Pusher        ports.Pusher
	Notifier      ports.Notifier
	Oracle        ports.CauseOracle
	NonceCache    ports.NonceCache
	Clock         ports.Clock
	IDGenerator   ports.IDGenerator
	StuckAfter    time.Duration
	MaxRetries    int
	OracleTimeout time.Duration
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:        deps.Repository,
		Keys:        deps.Keys,
		Custody:     deps.Custody,
		Pusher:      deps.Pusher,
		Notifier:    deps.Notifier,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	return Module{
		Service: service,
		Verifier: application.Verifier{
			Keys:    deps.Keys,
			Nonces:  deps.NonceCache,
			Custody: deps.Custody,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
		Watchdog: workers.Watchdog{
			Repo:          deps.Repository,
			Keys:          deps.Keys,
			Custody:       deps.Custody,
			Pusher:        deps.Pusher,
			Notifier:      deps.Notifier,
			Oracle:        deps.Oracle,
			Clock:         deps.Clock,
			StuckAfter:    deps.StuckAfter,
			MaxRetries:    deps.MaxRetries,
			OracleTimeout: deps.OracleTimeout,
			Logger:        deps.Logger,
		},
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(keys ports.DeviceKeyProvider, custody ports.CustodyRecorder, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Keys:        keys,
		Custody:     custody,
		Pusher:      store,
		Notifier:    store,
		Oracle:      store,
		NonceCache:  store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
