package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"warden/contexts/identity-access/stepup-service/ports"
)

type UUIDGenerator struct{}

var _ ports.IDGenerator = UUIDGenerator{}

func (UUIDGenerator) NewID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

type SystemClock struct{}

var _ ports.Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
