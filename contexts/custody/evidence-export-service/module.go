package evidenceexportservice

import (
	"log/slog"

	"warden/contexts/custody/evidence-export-service/adapters/memory"
	"warden/contexts/custody/evidence-export-service/application"
	"warden/contexts/custody/evidence-export-service/application/workers"
	"warden/contexts/custody/evidence-export-service/ports"
)

type Module struct {
	Service application.Service
	Runner  workers.Runner
	Store   *memory.Store
}

type Dependencies struct {
	Evidence    ports.EvidenceRepository
	Jobs        ports.JobRepository
	Blobs       ports.BlobStore
	Archives    ports.ArchiveStore
	Custody     ports.CustodyRecorder
	Reporter    ports.ChainReporter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	SigningKey  []byte
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Evidence:    deps.Evidence,
		Jobs:        deps.Jobs,
		Blobs:       deps.Blobs,
		Archives:    deps.Archives,
		Custody:     deps.Custody,
		Reporter:    deps.Reporter,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		SigningKey:  deps.SigningKey,
		Logger:      deps.Logger,
	}
	return Module{
		Service: service,
		Runner: workers.Runner{
			Jobs:     deps.Jobs,
			Exporter: service,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(custody ports.CustodyRecorder, reporter ports.ChainReporter, signingKey []byte, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Evidence:    store,
		Jobs:        store,
		Blobs:       store,
		Archives:    store,
		Custody:     custody,
		Reporter:    reporter,
		Clock:       store,
		IDGenerator: store,
		SigningKey:  signingKey,
		Logger:      logger,
	})
	module.Store = store
	return module
}
