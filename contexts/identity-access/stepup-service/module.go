package stepupservice

import (
	"log/slog"
	"time"

	httpadapter "warden/contexts/identity-access/stepup-service/adapters/http"
	"warden/contexts/identity-access/stepup-service/adapters/memory"
	"warden/contexts/identity-access/stepup-service/application"
	"warden/contexts/identity-access/stepup-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.SessionRepository
	Custody     ports.CustodyRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	TokenSecret []byte
	SessionTTL  time.Duration
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:        deps.Repository,
		Custody:     deps.Custody,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		TokenSecret: deps.TokenSecret,
		SessionTTL:  deps.SessionTTL,
		TokenTTL:    deps.TokenTTL,
		Logger:      deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(custody ports.CustodyRecorder, tokenSecret []byte, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		Custody:     custody,
		Clock:       store,
		IDGenerator: store,
		TokenSecret: tokenSecret,
		Logger:      logger,
	})
	module.Store = store
	return module
}
