package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/location-safety/geofence-service/domain/entities"
	domainerrors "warden/contexts/location-safety/geofence-service/domain/errors"
	"warden/contexts/location-safety/geofence-service/domain/services"
	"warden/contexts/location-safety/geofence-service/ports"
)

type Service struct {
	Zones       ports.ZoneRepository
	States      ports.StateRepository
	Custody     ports.CustodyRecorder
	Notifier    ports.Notifier
	Defense     ports.DefenseCommandIssuer
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	// HysteresisM overrides the dead-band half-width; zero means the
	// default of 20 meters.
	HysteresisM float64
	// AutoDefense gates the lock-on-exit path globally. Zone flags
	// still apply underneath it.
	AutoDefense bool
	Logger      *slog.Logger
}

type SampleInput struct {
	FamilyID string
	DeviceID string
	Lat      float64
	Lng      float64
}

// ZoneOutcome reports what one zone decided for a processed sample.
type ZoneOutcome struct {
	ZoneID     string
	ZoneName   string
	Transition services.Transition
	DistanceM  float64
	CommandID  string
}

// ProcessSample evaluates one location fix against every zone of the
// device's family, persisting transitions and their side effects.
func (s Service) ProcessSample(ctx context.Context, input SampleInput) ([]ZoneOutcome, error) {
	input.FamilyID = strings.TrimSpace(input.FamilyID)
	input.DeviceID = strings.TrimSpace(input.DeviceID)
	if input.FamilyID == "" || input.DeviceID == "" ||
		input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return nil, domainerrors.ErrInvalidSample
	}

	zones, err := s.Zones.ListZonesByFamily(ctx, input.FamilyID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	outcomes := make([]ZoneOutcome, 0, len(zones))
	for _, zone := range zones {
		outcome, err := s.evaluateZone(ctx, input, zone, now)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s Service) evaluateZone(ctx context.Context, input SampleInput, zone entities.Zone, now time.Time) (ZoneOutcome, error) {
	distance := services.Distance(input.Lat, input.Lng, zone.CenterLat, zone.CenterLng)

	state, found, err := s.States.GetState(ctx, input.DeviceID, zone.ZoneID)
	if err != nil {
		return ZoneOutcome{}, err
	}
	if !found {
		state = entities.DeviceZoneState{
			DeviceID: input.DeviceID,
			ZoneID:   zone.ZoneID,
			FamilyID: input.FamilyID,
		}
	}

	transition := services.Evaluate(state.IsInside, distance, zone.RadiusM, s.hysteresis())
	outcome := ZoneOutcome{ZoneID: zone.ZoneID, ZoneName: zone.Name, Transition: transition, DistanceM: distance}

	state.LastDistanceM = distance
	state.UpdatedAt = now
	if transition == services.TransitionNone {
		if found {
			if err := s.States.SaveState(ctx, state); err != nil {
				return ZoneOutcome{}, err
			}
		}
		return outcome, nil
	}

	state.IsInside = transition == services.TransitionEnter
	state.LastTransitionAt = now
	if err := s.States.SaveState(ctx, state); err != nil {
		return ZoneOutcome{}, err
	}

	eventKey := "GEOFENCE_ENTER"
	if transition == services.TransitionExit {
		eventKey = "GEOFENCE_EXIT"
	}
	s.record(ctx, input, zone, eventKey, map[string]any{
		"zone_id":    zone.ZoneID,
		"zone_name":  zone.Name,
		"distance_m": distance,
		"severity":   zone.Severity,
	})

	s.notify(ctx, input, zone, transition, distance)

	if transition == services.TransitionExit && zone.AutoDefenseOnExit && s.AutoDefense && s.Defense != nil {
		commandID, err := s.Defense.IssueDefenseCommand(ctx, input.FamilyID, input.DeviceID, zone.Severity)
		if err != nil {
			ResolveLogger(s.Logger).Error("auto-defense command failed",
				"event", "geofence_auto_defense_failed",
				"module", "location-safety/geofence-service",
				"layer", "application",
				"zone_id", zone.ZoneID,
				"device_id", input.DeviceID,
				"error", err.Error(),
			)
		} else {
			outcome.CommandID = commandID
		}
	}
	return outcome, nil
}

func (s Service) notify(ctx context.Context, input SampleInput, zone entities.Zone, transition services.Transition, distance float64) {
	if s.Notifier == nil {
		return
	}
	var err error
	switch {
	case transition == services.TransitionEnter && zone.NotifyOnEnter:
		subject := fmt.Sprintf("Device entered %s", zone.Name)
		err = s.Notifier.NotifySecurityAlert(ctx, input.FamilyID, subject,
			fmt.Sprintf("device %s is %.0fm from the center of %s", input.DeviceID, distance, zone.Name))
	case transition == services.TransitionExit && zone.NotifyOnExit:
		subject := fmt.Sprintf("Device left %s", zone.Name)
		err = s.Notifier.NotifyCritical(ctx, input.FamilyID, subject,
			fmt.Sprintf("device %s is %.0fm from the center of %s", input.DeviceID, distance, zone.Name))
	}
	if err != nil {
		ResolveLogger(s.Logger).Error("geofence notification failed",
			"event", "geofence_notify_failed",
			"module", "location-safety/geofence-service",
			"layer", "application",
			"zone_id", zone.ZoneID,
			"error", err.Error(),
		)
	}
}

func (s Service) UpsertZone(ctx context.Context, zone entities.Zone) (entities.Zone, error) {
	zone.FamilyID = strings.TrimSpace(zone.FamilyID)
	zone.Name = strings.TrimSpace(zone.Name)
	zone.Severity = strings.TrimSpace(zone.Severity)
	if zone.Severity == "" {
		zone.Severity = "HIGH"
	}
	if !zone.Valid() {
		return entities.Zone{}, domainerrors.ErrInvalidZone
	}

	now := s.now()
	if zone.ZoneID == "" {
		zoneID, err := s.newID(ctx)
		if err != nil {
			return entities.Zone{}, err
		}
		zone.ZoneID = zoneID
		zone.CreatedAt = now
	}
	zone.UpdatedAt = now
	if err := s.Zones.UpsertZone(ctx, zone); err != nil {
		return entities.Zone{}, err
	}
	return zone, nil
}

func (s Service) ListZones(ctx context.Context, familyID string) ([]entities.Zone, error) {
	familyID = strings.TrimSpace(familyID)
	if familyID == "" {
		return nil, domainerrors.ErrInvalidZone
	}
	return s.Zones.ListZonesByFamily(ctx, familyID)
}

func (s Service) record(ctx context.Context, input SampleInput, zone entities.Zone, eventKey string, payload map[string]any) {
	if s.Custody == nil {
		return
	}
	if err := s.Custody.Record(ctx, input.FamilyID, input.DeviceID, "", "geofence-service", eventKey, payload); err != nil {
		ResolveLogger(s.Logger).Error("geofence custody append failed",
			"event", "geofence_custody_append_failed",
			"module", "location-safety/geofence-service",
			"layer", "application",
			"zone_id", zone.ZoneID,
			"event_key", eventKey,
			"error", err.Error(),
		)
	}
}

func (s Service) hysteresis() float64 {
	if s.HysteresisM > 0 {
		return s.HysteresisM
	}
	return services.DefaultHysteresisM
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGenerator == nil {
		return "", domainerrors.ErrInvalidZone
	}
	return s.IDGenerator.NewID(ctx)
}
