package ledgerservice

import (
	"log/slog"

	httpadapter "warden/contexts/custody/ledger-service/adapters/http"
	"warden/contexts/custody/ledger-service/adapters/memory"
	"warden/contexts/custody/ledger-service/application"
	"warden/contexts/custody/ledger-service/application/workers"
	"warden/contexts/custody/ledger-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Relay   workers.FeedRelay
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.LedgerRepository
	Outbox      ports.FeedOutbox
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:        deps.Repository,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Relay: workers.FeedRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			BatchSize: 100,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Outbox:      store,
		Publisher:   publisher,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
