package geofenceservice

import (
	"log/slog"

	httpadapter "warden/contexts/location-safety/geofence-service/adapters/http"
	"warden/contexts/location-safety/geofence-service/adapters/memory"
	"warden/contexts/location-safety/geofence-service/application"
	"warden/contexts/location-safety/geofence-service/ports"
)

type Module struct {
	Service application.Service
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Zones       ports.ZoneRepository
	States      ports.StateRepository
	Custody     ports.CustodyRecorder
	Notifier    ports.Notifier
	Defense     ports.DefenseCommandIssuer
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	HysteresisM float64
	AutoDefense bool
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Zones:       deps.Zones,
		States:      deps.States,
		Custody:     deps.Custody,
		Notifier:    deps.Notifier,
		Defense:     deps.Defense,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		HysteresisM: deps.HysteresisM,
		AutoDefense: deps.AutoDefense,
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

func NewInMemoryModule(custody ports.CustodyRecorder, notifier ports.Notifier, defense ports.DefenseCommandIssuer, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Zones:       store,
		States:      store,
		Custody:     custody,
		Notifier:    notifier,
		Defense:     defense,
		Clock:       store,
		IDGenerator: store,
		AutoDefense: true,
		Logger:      logger,
	})
	module.Store = store
	return module
}
