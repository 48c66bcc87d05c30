package keyregistryservice

import (
	"log/slog"

	"warden/contexts/device-control/key-registry-service/adapters/memory"
	"warden/contexts/device-control/key-registry-service/application"
	"warden/contexts/device-control/key-registry-service/ports"
)

type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.KeyRepository
	Custody    ports.CustodyRecorder
	Clock      ports.Clock
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Repo:    deps.Repository,
			Custody: deps.Custody,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(custody ports.CustodyRecorder, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Custody:    custody,
		Clock:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
