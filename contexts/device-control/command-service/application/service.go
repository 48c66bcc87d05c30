package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/device-control/command-service/domain/entities"
	domainerrors "warden/contexts/device-control/command-service/domain/errors"
	"warden/contexts/device-control/command-service/domain/services"
	"warden/contexts/device-control/command-service/ports"
)

const (
	defaultTTLSeconds = 120
	minTTLSeconds     = 15
	maxTTLSeconds     = 600

	// nonceAttempts bounds regeneration when a fresh random nonce
	// collides with a stored one for the same device.
	nonceAttempts = 3
)

type Service struct {
	Repo        ports.CommandRepository
	Keys        ports.DeviceKeyProvider
	Custody     ports.CustodyRecorder
	Pusher      ports.Pusher
	Notifier    ports.Notifier
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

type IssueInput struct {
	FamilyID    string
	DeviceID    string
	CommandType string
	Payload     any
	IncidentID  string
	TTLSeconds  int
	Actor       string
}

type IssueResult struct {
	Command   entities.DeviceCommand
	Envelope  services.Envelope
	Signature string
}

// CreateSignedCommand builds, signs, and persists a command, appends
// the COMMAND_ISSUED custody event, and hands the command id to the
// delivery channel. The push is best-effort: a lost push is recovered
// by the watchdog, not by the caller.
func (s Service) CreateSignedCommand(ctx context.Context, input IssueInput) (IssueResult, error) {
	input.FamilyID = strings.TrimSpace(input.FamilyID)
	input.DeviceID = strings.TrimSpace(input.DeviceID)
	input.CommandType = strings.TrimSpace(input.CommandType)
	input.IncidentID = strings.TrimSpace(input.IncidentID)
	if input.FamilyID == "" || input.DeviceID == "" || input.CommandType == "" {
		return IssueResult{}, domainerrors.ErrInvalidCommand
	}

	ttl := input.TTLSeconds
	if ttl == 0 {
		ttl = defaultTTLSeconds
	}
	if ttl < minTTLSeconds {
		ttl = minTTLSeconds
	}
	if ttl > maxTTLSeconds {
		ttl = maxTTLSeconds
	}

	payload, err := marshalPayload(input.Payload)
	if err != nil {
		return IssueResult{}, domainerrors.ErrInvalidCommand
	}

	commandID, err := s.newID(ctx)
	if err != nil {
		return IssueResult{}, err
	}
	key, keyVersion, err := s.Keys.SigningKey(ctx, input.DeviceID)
	if err != nil {
		return IssueResult{}, err
	}

	now := s.now()
	cmd := entities.DeviceCommand{
		CommandID:   commandID,
		FamilyID:    input.FamilyID,
		DeviceID:    input.DeviceID,
		IncidentID:  input.IncidentID,
		CommandType: input.CommandType,
		PayloadJSON: payload,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(ttl) * time.Second),
		Status:      entities.StatusQueued,
		KeyVersion:  keyVersion,
		UpdatedAt:   now,
	}

	var envelope services.Envelope
	for attempt := 0; attempt < nonceAttempts; attempt++ {
		cmd.Nonce, err = NewNonce()
		if err != nil {
			return IssueResult{}, err
		}
		envelope = services.BuildEnvelope(cmd)
		cmd.SignatureHMAC, err = services.Sign(envelope, key)
		if err != nil {
			return IssueResult{}, err
		}

		err = s.Repo.SaveCommand(ctx, cmd)
		if err == nil {
			break
		}
		if !errors.Is(err, domainerrors.ErrNonceConflict) {
			return IssueResult{}, err
		}
	}
	if err != nil {
		return IssueResult{}, err
	}

	s.recordCustody(ctx, cmd, "COMMAND_ISSUED", map[string]any{
		"command_id":   cmd.CommandID,
		"command_type": cmd.CommandType,
		"key_version":  cmd.KeyVersion,
		"expires_at":   cmd.ExpiresAt.UTC().Format(time.RFC3339),
	}, input.Actor)

	s.push(ctx, cmd)

	return IssueResult{Command: cmd, Envelope: envelope, Signature: cmd.SignatureHMAC}, nil
}

// IssueDefenseCommand issues a device lock on behalf of the geofence
// engine. Satisfies the geofence module's issuer port.
func (s Service) IssueDefenseCommand(ctx context.Context, familyID string, deviceID string, severity string) (string, error) {
	result, err := s.CreateSignedCommand(ctx, IssueInput{
		FamilyID:    familyID,
		DeviceID:    deviceID,
		CommandType: "DEVICE_LOCK",
		Payload: map[string]any{
			"severity": severity,
			"reason":   "geofence_exit",
		},
		Actor: "geofence-engine",
	})
	if err != nil {
		return "", err
	}
	return result.Command.CommandID, nil
}

func (s Service) MarkSent(ctx context.Context, commandID string) (entities.DeviceCommand, error) {
	return s.transition(ctx, commandID, entities.StatusSent, "")
}

func (s Service) MarkDelivered(ctx context.Context, commandID string) (entities.DeviceCommand, error) {
	return s.transition(ctx, commandID, entities.StatusDelivered, "")
}

func (s Service) MarkAcked(ctx context.Context, commandID string) (entities.DeviceCommand, error) {
	cmd, err := s.transition(ctx, commandID, entities.StatusAcked, "")
	if err != nil {
		return entities.DeviceCommand{}, err
	}
	s.recordCustody(ctx, cmd, "COMMAND_ACKED", map[string]any{
		"command_id": cmd.CommandID,
	}, "")
	return cmd, nil
}

// MarkFailed records an explicit device-side rejection. Terminal, no
// retry, and the alert is distinct from a timeout because a rejection
// can indicate key compromise or clock skew.
func (s Service) MarkFailed(ctx context.Context, commandID string, reason string) (entities.DeviceCommand, error) {
	cmd, err := s.transition(ctx, commandID, entities.StatusFailed, reason)
	if err != nil {
		return entities.DeviceCommand{}, err
	}
	s.recordCustody(ctx, cmd, "COMMAND_REJECTED", map[string]any{
		"command_id": cmd.CommandID,
		"reason":     reason,
	}, "")
	if s.Notifier != nil {
		if err := s.Notifier.NotifySecurityAlert(ctx, cmd.FamilyID, cmd.DeviceID, cmd.CommandID, "device rejected signed command: "+reason); err != nil {
			ResolveLogger(s.Logger).Warn("security alert emit failed",
				"event", "command_security_alert_failed",
				"module", "device-control/command-service",
				"layer", "application",
				"command_id", cmd.CommandID,
				"error", err.Error(),
			)
		}
	}
	return cmd, nil
}

type StatusView struct {
	CommandID  string
	DeviceID   string
	Status     entities.CommandStatus
	RetryCount int
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UpdatedAt  time.Time
}

func (s Service) CommandStatus(ctx context.Context, commandID string) (StatusView, error) {
	cmd, err := s.Repo.GetCommand(ctx, strings.TrimSpace(commandID))
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		CommandID:  cmd.CommandID,
		DeviceID:   cmd.DeviceID,
		Status:     cmd.Status,
		RetryCount: cmd.RetryCount,
		IssuedAt:   cmd.IssuedAt,
		ExpiresAt:  cmd.ExpiresAt,
		UpdatedAt:  cmd.UpdatedAt,
	}, nil
}

func (s Service) transition(ctx context.Context, commandID string, next entities.CommandStatus, reason string) (entities.DeviceCommand, error) {
	cmd, err := s.Repo.GetCommand(ctx, strings.TrimSpace(commandID))
	if err != nil {
		return entities.DeviceCommand{}, err
	}
	if !cmd.Status.CanTransitionTo(next) {
		return entities.DeviceCommand{}, domainerrors.ErrIllegalTransition
	}
	cmd.Status = next
	cmd.UpdatedAt = s.now()
	if err := s.Repo.UpdateCommand(ctx, cmd); err != nil {
		return entities.DeviceCommand{}, err
	}
	ResolveLogger(s.Logger).Info("command status changed",
		"event", "command_status_changed",
		"module", "device-control/command-service",
		"layer", "application",
		"command_id", cmd.CommandID,
		"status", string(next),
		"reason", reason,
	)
	return cmd, nil
}

func (s Service) push(ctx context.Context, cmd entities.DeviceCommand) {
	if s.Pusher == nil {
		return
	}
	if err := s.Pusher.Push(ctx, cmd.DeviceID, cmd.CommandID); err != nil {
		ResolveLogger(s.Logger).Warn("command push failed, watchdog will retry",
			"event", "command_push_failed",
			"module", "device-control/command-service",
			"layer", "application",
			"command_id", cmd.CommandID,
			"device_id", cmd.DeviceID,
			"error", err.Error(),
		)
	}
}

func (s Service) recordCustody(ctx context.Context, cmd entities.DeviceCommand, eventKey string, payload map[string]any, actor string) {
	if s.Custody == nil {
		return
	}
	if actor == "" {
		actor = "command-service"
	}
	if err := s.Custody.Record(ctx, cmd.FamilyID, cmd.DeviceID, "", actor, eventKey, payload); err != nil {
		ResolveLogger(s.Logger).Error("command custody append failed",
			"event", "command_custody_append_failed",
			"module", "device-control/command-service",
			"layer", "application",
			"command_id", cmd.CommandID,
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

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGenerator == nil {
		return "", domainerrors.ErrDependencyUnavailable
	}
	return s.IDGenerator.NewID(ctx)
}

// NewNonce returns 16 random bytes hex encoded.
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(raw) {
			return nil, errors.New("payload is not valid json")
		}
		return raw, nil
	}
	return json.Marshal(payload)
}
