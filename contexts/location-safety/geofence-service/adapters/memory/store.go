package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warden/contexts/location-safety/geofence-service/domain/entities"
	"warden/contexts/location-safety/geofence-service/ports"
)

// Store backs the geofence engine in tests and local runs.
type Store struct {
	mu       sync.Mutex
	zones    map[string]entities.Zone
	states   map[string]entities.DeviceZoneState
	sequence int
	now      time.Time
}

var _ ports.ZoneRepository = (*Store)(nil)
var _ ports.StateRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		zones:  map[string]entities.Zone{},
		states: map[string]entities.DeviceZoneState{},
		now:    time.Now().UTC(),
	}
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return fmt.Sprintf("zone-%d", s.sequence), nil
}

func (s *Store) UpsertZone(ctx context.Context, zone entities.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone.ZoneID] = zone
	return nil
}

func (s *Store) ListZonesByFamily(ctx context.Context, familyID string) ([]entities.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Zone
	for _, zone := range s.zones {
		if zone.FamilyID == familyID {
			out = append(out, zone)
		}
	}
	return out, nil
}

func (s *Store) GetState(ctx context.Context, deviceID string, zoneID string) (entities.DeviceZoneState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[stateKey(deviceID, zoneID)]
	return state, ok, nil
}

func (s *Store) SaveState(ctx context.Context, state entities.DeviceZoneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.DeviceID, state.ZoneID)] = state
	return nil
}

func stateKey(deviceID, zoneID string) string {
	return deviceID + "/" + zoneID
}
