package memory

import (
	"context"
	"sync"
	"time"

	"warden/contexts/device-control/key-registry-service/domain/entities"
	"warden/contexts/device-control/key-registry-service/ports"
)

type Store struct {
	mu   sync.RWMutex
	keys map[string]entities.DeviceKey
}

func NewStore() *Store {
	return &Store{
		keys: map[string]entities.DeviceKey{},
	}
}

func (s *Store) GetKey(ctx context.Context, deviceID string) (entities.DeviceKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[deviceID]
	return key, ok, nil
}

func (s *Store) SaveKey(ctx context.Context, key entities.DeviceKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.DeviceID] = key
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

var _ ports.KeyRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
