package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/device-control/key-registry-service/domain/entities"
	domainerrors "warden/contexts/device-control/key-registry-service/domain/errors"
	"warden/contexts/device-control/key-registry-service/ports"
)

type Service struct {
	Repo    ports.KeyRepository
	Custody ports.CustodyRecorder
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (s Service) RegisterDevice(ctx context.Context, deviceID string, familyID string, keyB64 string) (entities.DeviceKey, error) {
	deviceID = strings.TrimSpace(deviceID)
	familyID = strings.TrimSpace(familyID)
	if deviceID == "" || familyID == "" {
		return entities.DeviceKey{}, domainerrors.ErrInvalidKey
	}
	if _, err := entities.DecodeKey(keyB64); err != nil {
		return entities.DeviceKey{}, err
	}

	_, found, err := s.Repo.GetKey(ctx, deviceID)
	if err != nil {
		return entities.DeviceKey{}, err
	}
	if found {
		return entities.DeviceKey{}, domainerrors.ErrDeviceExists
	}

	key := entities.DeviceKey{
		DeviceID:     deviceID,
		FamilyID:     familyID,
		SharedKeyB64: keyB64,
		KeyVersion:   1,
		UpdatedAt:    s.now(),
	}
	if err := s.Repo.SaveKey(ctx, key); err != nil {
		return entities.DeviceKey{}, err
	}
	s.record(ctx, key, "DEVICE_PAIRED", map[string]any{
		"key_version": key.KeyVersion,
	})
	return key, nil
}

func (s Service) ActiveKey(ctx context.Context, deviceID string) (entities.DeviceKey, error) {
	key, found, err := s.Repo.GetKey(ctx, strings.TrimSpace(deviceID))
	if err != nil {
		return entities.DeviceKey{}, err
	}
	if !found {
		return entities.DeviceKey{}, domainerrors.ErrDeviceNotFound
	}
	return key, nil
}

// SigningKey returns the active key material for issuing new commands.
func (s Service) SigningKey(ctx context.Context, deviceID string) ([]byte, int, error) {
	key, err := s.ActiveKey(ctx, deviceID)
	if err != nil {
		return nil, 0, err
	}
	raw, err := key.ActiveKeyBytes()
	if err != nil {
		return nil, 0, err
	}
	return raw, key.KeyVersion, nil
}

// VerificationKeys returns the active key first, then the pending
// rotation key when one exists. Verifiers try them in order; a fully
// retired key never appears here.
func (s Service) VerificationKeys(ctx context.Context, deviceID string) ([][]byte, error) {
	key, err := s.ActiveKey(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	active, err := key.ActiveKeyBytes()
	if err != nil {
		return nil, err
	}
	keys := [][]byte{active}
	if key.RotationPending() {
		pending, err := key.PendingKeyBytes()
		if err != nil {
			return nil, err
		}
		keys = append(keys, pending)
	}
	return keys, nil
}

func (s Service) BeginRotation(ctx context.Context, deviceID string, newKeyB64 string) (entities.DeviceKey, error) {
	if _, err := entities.DecodeKey(newKeyB64); err != nil {
		return entities.DeviceKey{}, err
	}
	key, err := s.ActiveKey(ctx, deviceID)
	if err != nil {
		return entities.DeviceKey{}, err
	}
	if key.RotationPending() {
		return entities.DeviceKey{}, domainerrors.ErrRotationPending
	}

	key.NextSharedKeyB64 = newKeyB64
	key.NextKeyVersion = key.KeyVersion + 1
	key.UpdatedAt = s.now()
	if err := s.Repo.SaveKey(ctx, key); err != nil {
		return entities.DeviceKey{}, err
	}
	s.record(ctx, key, "DEVICE_KEY_ROTATION_STARTED", map[string]any{
		"active_version":  key.KeyVersion,
		"pending_version": key.NextKeyVersion,
	})
	return key, nil
}

func (s Service) CommitRotation(ctx context.Context, deviceID string) (entities.DeviceKey, error) {
	key, err := s.ActiveKey(ctx, deviceID)
	if err != nil {
		return entities.DeviceKey{}, err
	}
	if !key.RotationPending() {
		return entities.DeviceKey{}, domainerrors.ErrNoRotationPending
	}

	retired := key.KeyVersion
	key.SharedKeyB64 = key.NextSharedKeyB64
	key.KeyVersion = key.NextKeyVersion
	key.NextSharedKeyB64 = ""
	key.NextKeyVersion = 0
	key.UpdatedAt = s.now()
	if err := s.Repo.SaveKey(ctx, key); err != nil {
		return entities.DeviceKey{}, err
	}
	s.record(ctx, key, "DEVICE_KEY_ROTATED", map[string]any{
		"active_version":  key.KeyVersion,
		"retired_version": retired,
	})
	return key, nil
}

func (s Service) record(ctx context.Context, key entities.DeviceKey, eventKey string, payload map[string]any) {
	if s.Custody == nil {
		return
	}
	if err := s.Custody.Record(ctx, key.FamilyID, key.DeviceID, "", "key-registry", eventKey, payload); err != nil {
		ResolveLogger(s.Logger).Error("key registry custody append failed",
			"event", "key_registry_custody_append_failed",
			"module", "device-control/key-registry-service",
			"layer", "application",
			"device_id", key.DeviceID,
			"event_key", eventKey,
			"error", err.Error(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
