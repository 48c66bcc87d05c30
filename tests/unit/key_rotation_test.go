package unit

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerports "warden/contexts/custody/ledger-service/ports"
	commandservice "warden/contexts/device-control/command-service"
	"warden/contexts/device-control/command-service/application"
	commandsvc "warden/contexts/device-control/command-service/domain/services"
	keyregistryservice "warden/contexts/device-control/key-registry-service"
	keyerrors "warden/contexts/device-control/key-registry-service/domain/errors"
)

func testKeyB64(seed byte) string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestKeyRegistryPairingAndValidation(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	keys := keyregistryservice.NewInMemoryModule(ledger.Service, nil)
	ctx := context.Background()

	key, err := keys.Service.RegisterDevice(ctx, "dev_100", "fam_100", testKeyB64(1))
	if err != nil {
		t.Fatalf("register device failed: %v", err)
	}
	if key.KeyVersion != 1 {
		t.Fatalf("expected fresh device at key version 1, got %d", key.KeyVersion)
	}

	if _, err := keys.Service.RegisterDevice(ctx, "dev_100", "fam_100", testKeyB64(2)); !errors.Is(err, keyerrors.ErrDeviceExists) {
		t.Fatalf("expected duplicate pairing rejection, got %v", err)
	}
	if _, err := keys.Service.RegisterDevice(ctx, "dev_101", "fam_100", base64.StdEncoding.EncodeToString([]byte("short"))); !errors.Is(err, keyerrors.ErrInvalidKey) {
		t.Fatalf("expected short key rejection, got %v", err)
	}
	if _, _, err := keys.Service.SigningKey(ctx, "dev_missing"); !errors.Is(err, keyerrors.ErrDeviceNotFound) {
		t.Fatalf("expected unknown device error, got %v", err)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_100"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	if len(events) != 1 || events[0].EventKey != "DEVICE_PAIRED" {
		t.Fatalf("expected single DEVICE_PAIRED custody event, got %+v", events)
	}
}

func TestKeyRotationGraceWindow(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	keys := keyregistryservice.NewInMemoryModule(ledger.Service, nil)
	commands := commandservice.NewInMemoryModule(keys.Service, ledger.Service, nil)
	ctx := context.Background()

	if _, err := keys.Service.RegisterDevice(ctx, "dev_200", "fam_200", testKeyB64(10)); err != nil {
		t.Fatalf("register device failed: %v", err)
	}

	issued, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_200",
		DeviceID:    "dev_200",
		CommandType: "DEVICE_LOCK",
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}
	if issued.Command.KeyVersion != 1 {
		t.Fatalf("expected command signed with version 1, got %d", issued.Command.KeyVersion)
	}

	// Rotation begins: the old envelope must keep verifying until commit.
	if _, err := keys.Service.BeginRotation(ctx, "dev_200", testKeyB64(20)); err != nil {
		t.Fatalf("begin rotation failed: %v", err)
	}
	verification, err := keys.Service.VerificationKeys(ctx, "dev_200")
	if err != nil {
		t.Fatalf("verification keys failed: %v", err)
	}
	if len(verification) != 2 {
		t.Fatalf("expected active plus pending key during rotation, got %d", len(verification))
	}
	if !commandsvc.VerifySignature(issued.Envelope, issued.Signature, verification) {
		t.Fatalf("envelope signed before rotation must still verify during the grace window")
	}

	pendingSig, err := commandsvc.Sign(issued.Envelope, verification[1])
	if err != nil {
		t.Fatalf("sign with pending key failed: %v", err)
	}
	if !commandsvc.VerifySignature(issued.Envelope, pendingSig, verification) {
		t.Fatalf("pending key must verify during the grace window")
	}

	if _, err := keys.Service.BeginRotation(ctx, "dev_200", testKeyB64(30)); !errors.Is(err, keyerrors.ErrRotationPending) {
		t.Fatalf("expected overlapping rotation rejection, got %v", err)
	}

	// Commit retires the old key entirely.
	committed, err := keys.Service.CommitRotation(ctx, "dev_200")
	if err != nil {
		t.Fatalf("commit rotation failed: %v", err)
	}
	if committed.KeyVersion != 2 || committed.RotationPending() {
		t.Fatalf("expected committed version 2 with no pending key, got %+v", committed)
	}

	verification, err = keys.Service.VerificationKeys(ctx, "dev_200")
	if err != nil {
		t.Fatalf("verification keys after commit failed: %v", err)
	}
	if len(verification) != 1 {
		t.Fatalf("expected only the new key after commit, got %d", len(verification))
	}
	if commandsvc.VerifySignature(issued.Envelope, issued.Signature, verification) {
		t.Fatalf("retired key signature must stop verifying after commit")
	}

	if _, err := keys.Service.CommitRotation(ctx, "dev_200"); !errors.Is(err, keyerrors.ErrNoRotationPending) {
		t.Fatalf("expected no-rotation-pending error, got %v", err)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_200"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	seen := map[string]bool{}
	for _, event := range events {
		seen[event.EventKey] = true
	}
	for _, key := range []string{"DEVICE_PAIRED", "COMMAND_ISSUED", "DEVICE_KEY_ROTATION_STARTED", "DEVICE_KEY_ROTATED"} {
		if !seen[key] {
			t.Fatalf("expected custody event %s, chain has %v", key, seen)
		}
	}
}
