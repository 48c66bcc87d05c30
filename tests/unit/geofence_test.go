package unit

import (
	"context"
	"testing"

	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerports "warden/contexts/custody/ledger-service/ports"
	commandservice "warden/contexts/device-control/command-service"
	"warden/contexts/device-control/command-service/domain/entities"
	keyregistryservice "warden/contexts/device-control/key-registry-service"
	geofenceservice "warden/contexts/location-safety/geofence-service"
	"warden/contexts/location-safety/geofence-service/application"
	zoneentities "warden/contexts/location-safety/geofence-service/domain/entities"
	"warden/contexts/location-safety/geofence-service/domain/services"
)

// metersPerDegreeLat matches the haversine sphere radius, so a pure
// latitude offset yields an exact expected distance.
const metersPerDegreeLat = 6371000.0 * 3.141592653589793 / 180.0

type capturedAlert struct {
	Kind    string
	Subject string
}

type fakeZoneNotifier struct {
	alerts []capturedAlert
}

func (f *fakeZoneNotifier) NotifyCritical(ctx context.Context, familyID string, subject string, body string) error {
	f.alerts = append(f.alerts, capturedAlert{Kind: "critical", Subject: subject})
	return nil
}

func (f *fakeZoneNotifier) NotifySecurityAlert(ctx context.Context, familyID string, subject string, body string) error {
	f.alerts = append(f.alerts, capturedAlert{Kind: "security_alert", Subject: subject})
	return nil
}

func latAt(meters float64) float64 {
	return meters / metersPerDegreeLat
}

func TestGeofenceHysteresisSuppressesFlapping(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	notifier := &fakeZoneNotifier{}
	geofence := geofenceservice.NewInMemoryModule(ledger.Service, notifier, nil, nil)
	ctx := context.Background()

	zone, err := geofence.Service.UpsertZone(ctx, zoneentities.Zone{
		FamilyID:      "fam_600",
		Name:          "home",
		CenterLat:     0,
		CenterLng:     0,
		RadiusM:       50,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
	})
	if err != nil {
		t.Fatalf("upsert zone failed: %v", err)
	}

	sample := func(meters float64) services.Transition {
		t.Helper()
		outcomes, err := geofence.Service.ProcessSample(ctx, application.SampleInput{
			FamilyID: "fam_600",
			DeviceID: "dev_600",
			Lat:      latAt(meters),
			Lng:      0,
		})
		if err != nil {
			t.Fatalf("process sample at %.0fm failed: %v", meters, err)
		}
		if len(outcomes) != 1 || outcomes[0].ZoneID != zone.ZoneID {
			t.Fatalf("expected one outcome for %s, got %+v", zone.ZoneID, outcomes)
		}
		return outcomes[0].Transition
	}

	// Outside with the first fix in the dead band: no transition yet.
	if got := sample(35); got != services.TransitionNone {
		t.Fatalf("35m while outside: expected NONE, got %s", got)
	}
	// Clearly past the inner threshold (radius - hysteresis = 30m).
	if got := sample(24); got != services.TransitionEnter {
		t.Fatalf("24m: expected ENTER, got %s", got)
	}
	// Oscillation around the boundary holds the inside state.
	for _, meters := range []float64{45, 55, 45, 55} {
		if got := sample(meters); got != services.TransitionNone {
			t.Fatalf("%.0fm while inside: expected NONE, got %s", meters, got)
		}
	}
	// Past the outer threshold (radius + hysteresis = 70m).
	if got := sample(75); got != services.TransitionExit {
		t.Fatalf("75m: expected EXIT, got %s", got)
	}

	if len(notifier.alerts) != 2 {
		t.Fatalf("expected one enter and one exit alert, got %+v", notifier.alerts)
	}
	if notifier.alerts[0].Kind != "security_alert" || notifier.alerts[1].Kind != "critical" {
		t.Fatalf("expected enter=security_alert then exit=critical, got %+v", notifier.alerts)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_600"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	counts := map[string]int{}
	for _, event := range events {
		counts[event.EventKey]++
	}
	if counts["GEOFENCE_ENTER"] != 1 || counts["GEOFENCE_EXIT"] != 1 {
		t.Fatalf("expected exactly one enter and one exit custody event, got %v", counts)
	}
}

func TestGeofenceExitTriggersAutoDefense(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	keys := keyregistryservice.NewInMemoryModule(ledger.Service, nil)
	commands := commandservice.NewInMemoryModule(keys.Service, ledger.Service, nil)
	notifier := &fakeZoneNotifier{}
	geofence := geofenceservice.NewInMemoryModule(ledger.Service, notifier, commands.Service, nil)
	ctx := context.Background()

	if _, err := keys.Service.RegisterDevice(ctx, "dev_601", "fam_601", testKeyB64(70)); err != nil {
		t.Fatalf("register device failed: %v", err)
	}
	if _, err := geofence.Service.UpsertZone(ctx, zoneentities.Zone{
		FamilyID:          "fam_601",
		Name:              "school",
		CenterLat:         0,
		CenterLng:         0,
		RadiusM:           50,
		NotifyOnExit:      true,
		AutoDefenseOnExit: true,
		Severity:          "CRITICAL",
	}); err != nil {
		t.Fatalf("upsert zone failed: %v", err)
	}

	if _, err := geofence.Service.ProcessSample(ctx, application.SampleInput{
		FamilyID: "fam_601", DeviceID: "dev_601", Lat: latAt(10), Lng: 0,
	}); err != nil {
		t.Fatalf("enter sample failed: %v", err)
	}
	outcomes, err := geofence.Service.ProcessSample(ctx, application.SampleInput{
		FamilyID: "fam_601", DeviceID: "dev_601", Lat: latAt(80), Lng: 0,
	})
	if err != nil {
		t.Fatalf("exit sample failed: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Transition != services.TransitionExit {
		t.Fatalf("expected exit outcome, got %+v", outcomes)
	}
	if outcomes[0].CommandID == "" {
		t.Fatalf("expected auto-defense command id on exit outcome")
	}

	cmd, err := commands.Store.GetCommand(ctx, outcomes[0].CommandID)
	if err != nil {
		t.Fatalf("auto-defense command not persisted: %v", err)
	}
	if cmd.CommandType != "DEVICE_LOCK" || cmd.Status != entities.StatusQueued {
		t.Fatalf("unexpected auto-defense command: %+v", cmd)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_601"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	seen := map[string]bool{}
	for _, event := range events {
		seen[event.EventKey] = true
	}
	for _, key := range []string{"GEOFENCE_EXIT", "COMMAND_ISSUED"} {
		if !seen[key] {
			t.Fatalf("expected custody event %s, chain has %v", key, seen)
		}
	}
}

func TestGeofenceInvalidSampleRejected(t *testing.T) {
	geofence := geofenceservice.NewInMemoryModule(nil, nil, nil, nil)
	ctx := context.Background()

	if _, err := geofence.Service.ProcessSample(ctx, application.SampleInput{
		FamilyID: "fam_602", DeviceID: "dev_602", Lat: 91, Lng: 0,
	}); err == nil {
		t.Fatalf("expected invalid latitude rejection")
	}
	if _, err := geofence.Service.ProcessSample(ctx, application.SampleInput{
		FamilyID: "", DeviceID: "dev_602", Lat: 0, Lng: 0,
	}); err == nil {
		t.Fatalf("expected blank family rejection")
	}
}
