package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerports "warden/contexts/custody/ledger-service/ports"
	commandservice "warden/contexts/device-control/command-service"
	"warden/contexts/device-control/command-service/application"
	"warden/contexts/device-control/command-service/domain/entities"
	domainerrors "warden/contexts/device-control/command-service/domain/errors"
	keyregistryservice "warden/contexts/device-control/key-registry-service"
)

func newCommandFixture(t *testing.T) (ledgerservice.Module, commandservice.Module) {
	t.Helper()
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	keys := keyregistryservice.NewInMemoryModule(ledger.Service, nil)
	commands := commandservice.NewInMemoryModule(keys.Service, ledger.Service, nil)
	if _, err := keys.Service.RegisterDevice(context.Background(), "dev_300", "fam_300", testKeyB64(40)); err != nil {
		t.Fatalf("register device failed: %v", err)
	}
	return ledger, commands
}

func TestCommandIssueSignsAndPushes(t *testing.T) {
	ledger, commands := newCommandFixture(t)
	ctx := context.Background()

	result, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_300",
		DeviceID:    "dev_300",
		CommandType: "DEVICE_LOCK",
		Payload:     map[string]any{"reason": "manual"},
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}
	if result.Command.Status != entities.StatusQueued {
		t.Fatalf("expected QUEUED, got %s", result.Command.Status)
	}
	if len(result.Command.Nonce) != 32 {
		t.Fatalf("expected 16-byte hex nonce, got %q", result.Command.Nonce)
	}
	if result.Signature == "" || result.Signature != result.Command.SignatureHMAC {
		t.Fatalf("issue result must carry the persisted signature")
	}

	pushes := commands.Store.Pushes()
	if len(pushes) != 1 || pushes[0] != "dev_300:"+result.Command.CommandID {
		t.Fatalf("expected one push for the new command, got %v", pushes)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_300"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	var issuedSeen bool
	for _, event := range events {
		if event.EventKey == "COMMAND_ISSUED" {
			issuedSeen = true
		}
	}
	if !issuedSeen {
		t.Fatalf("expected COMMAND_ISSUED custody event")
	}
}

func TestCommandTTLClamping(t *testing.T) {
	_, commands := newCommandFixture(t)
	ctx := context.Background()

	cases := []struct {
		requested int
		want      time.Duration
	}{
		{requested: 0, want: 120 * time.Second},
		{requested: 5, want: 15 * time.Second},
		{requested: 10000, want: 600 * time.Second},
		{requested: 60, want: 60 * time.Second},
	}
	for _, tc := range cases {
		result, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
			FamilyID:    "fam_300",
			DeviceID:    "dev_300",
			CommandType: "SIREN_ON",
			TTLSeconds:  tc.requested,
			Actor:       "parent_1",
		})
		if err != nil {
			t.Fatalf("issue with ttl %d failed: %v", tc.requested, err)
		}
		got := result.Command.ExpiresAt.Sub(result.Command.IssuedAt)
		if got != tc.want {
			t.Fatalf("ttl %d: expected validity %s, got %s", tc.requested, tc.want, got)
		}
	}
}

func TestCommandVerifierAcceptAndReplay(t *testing.T) {
	ledger, commands := newCommandFixture(t)
	ctx := context.Background()

	result, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_300",
		DeviceID:    "dev_300",
		CommandType: "DEVICE_LOCK",
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}

	if err := commands.Verifier.Accept(ctx, "fam_300", result.Envelope, result.Signature); err != nil {
		t.Fatalf("first acceptance failed: %v", err)
	}
	if err := commands.Verifier.Accept(ctx, "fam_300", result.Envelope, result.Signature); !errors.Is(err, domainerrors.ErrNonceReplayed) {
		t.Fatalf("expected nonce replay rejection, got %v", err)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_300"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	var rejected int
	for _, event := range events {
		if event.EventKey == "COMMAND_REJECTED" {
			rejected++
		}
	}
	if rejected != 1 {
		t.Fatalf("expected exactly one COMMAND_REJECTED custody event, got %d", rejected)
	}
}

func TestCommandVerifierRejectsTamperAndExpiry(t *testing.T) {
	_, commands := newCommandFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	commands.Store.SetNow(base)

	result, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_300",
		DeviceID:    "dev_300",
		CommandType: "DEVICE_LOCK",
		TTLSeconds:  60,
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}

	tampered := result.Envelope
	tampered.CommandType = "DEVICE_UNLOCK"
	if err := commands.Verifier.Accept(ctx, "fam_300", tampered, result.Signature); !errors.Is(err, domainerrors.ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch on tampered envelope, got %v", err)
	}

	badVersion := result.Envelope
	badVersion.Version = 99
	if err := commands.Verifier.Accept(ctx, "fam_300", badVersion, result.Signature); !errors.Is(err, domainerrors.ErrSignatureMismatch) {
		t.Fatalf("expected unsupported version rejection, got %v", err)
	}

	commands.Store.SetNow(base.Add(61 * time.Second))
	if err := commands.Verifier.Accept(ctx, "fam_300", result.Envelope, result.Signature); !errors.Is(err, domainerrors.ErrCommandExpired) {
		t.Fatalf("expected expiry rejection, got %v", err)
	}
}

func TestCommandStatusTransitions(t *testing.T) {
	ledger, commands := newCommandFixture(t)
	ctx := context.Background()

	result, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_300",
		DeviceID:    "dev_300",
		CommandType: "DEVICE_LOCK",
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}
	commandID := result.Command.CommandID

	if _, err := commands.Service.MarkAcked(ctx, commandID); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected QUEUED->ACKED to be illegal, got %v", err)
	}
	if _, err := commands.Service.MarkSent(ctx, commandID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if _, err := commands.Service.MarkDelivered(ctx, commandID); err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if _, err := commands.Service.MarkAcked(ctx, commandID); err != nil {
		t.Fatalf("mark acked failed: %v", err)
	}
	if _, err := commands.Service.MarkSent(ctx, commandID); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected terminal ACKED state to reject transitions, got %v", err)
	}

	status, err := commands.Service.CommandStatus(ctx, commandID)
	if err != nil {
		t.Fatalf("command status failed: %v", err)
	}
	if status.Status != entities.StatusAcked {
		t.Fatalf("expected ACKED, got %s", status.Status)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_300"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	var ackSeen bool
	for _, event := range events {
		if event.EventKey == "COMMAND_ACKED" {
			ackSeen = true
		}
	}
	if !ackSeen {
		t.Fatalf("expected COMMAND_ACKED custody event")
	}
}

func TestCommandFailureRaisesSecurityAlert(t *testing.T) {
	_, commands := newCommandFixture(t)
	ctx := context.Background()

	result, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_300",
		DeviceID:    "dev_300",
		CommandType: "DEVICE_LOCK",
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}
	if _, err := commands.Service.MarkFailed(ctx, result.Command.CommandID, "signature rejected by device"); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	alerts := commands.Store.Notifications("security_alert")
	if len(alerts) != 1 {
		t.Fatalf("expected one security alert, got %d", len(alerts))
	}
	if alerts[0].CommandID != result.Command.CommandID {
		t.Fatalf("alert references wrong command: %+v", alerts[0])
	}
}
