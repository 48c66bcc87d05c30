package ports

import (
	"context"
	"time"

	"warden/contexts/device-control/key-registry-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type KeyRepository interface {
	GetKey(ctx context.Context, deviceID string) (entities.DeviceKey, bool, error)
	SaveKey(ctx context.Context, key entities.DeviceKey) error
}

// CustodyRecorder appends an audit event to the family custody chain.
// Satisfied by the ledger service.
type CustodyRecorder interface {
	Record(ctx context.Context, familyID string, deviceID string, userID string, actor string, eventKey string, payload any) error
}
