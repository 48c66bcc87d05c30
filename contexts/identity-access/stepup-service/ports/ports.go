package ports

import (
	"context"
	"time"

	"warden/contexts/identity-access/stepup-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type SessionRepository interface {
	SaveSession(ctx context.Context, session entities.StepUpSession) error
	GetSession(ctx context.Context, stepupID string) (entities.StepUpSession, error)
	UpdateSession(ctx context.Context, session entities.StepUpSession) error
	// ConsumeSession atomically claims the session: it sets used_at
	// only when the session is verified and still unused, otherwise
	// ErrSessionUsed / ErrSessionNotVerified. Single-use depends on
	// this being a compare-and-set, not a read-then-write.
	ConsumeSession(ctx context.Context, stepupID string, usedAt time.Time) error
}

type CustodyRecorder interface {
	Record(ctx context.Context, familyID string, deviceID string, userID string, actor string, eventKey string, payload any) error
}
