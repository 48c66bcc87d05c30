package ports

import (
	"context"
	"time"

	"warden/contexts/location-safety/geofence-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type ZoneRepository interface {
	UpsertZone(ctx context.Context, zone entities.Zone) error
	ListZonesByFamily(ctx context.Context, familyID string) ([]entities.Zone, error)
}

type StateRepository interface {
	// GetState returns found=false when the device has no row for the
	// zone, which the engine treats as outside.
	GetState(ctx context.Context, deviceID string, zoneID string) (entities.DeviceZoneState, bool, error)
	SaveState(ctx context.Context, state entities.DeviceZoneState) error
}

type CustodyRecorder interface {
	Record(ctx context.Context, familyID string, deviceID string, userID string, actor string, eventKey string, payload any) error
}

type Notifier interface {
	NotifyCritical(ctx context.Context, familyID string, subject string, body string) error
	NotifySecurityAlert(ctx context.Context, familyID string, subject string, body string) error
}

// DefenseCommandIssuer is satisfied by the command service and lets an
// exit from a protected zone trigger a signed device lock.
type DefenseCommandIssuer interface {
	IssueDefenseCommand(ctx context.Context, familyID string, deviceID string, severity string) (string, error)
}
