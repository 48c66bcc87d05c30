package unit

import (
	"context"
	"testing"
	"time"

	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerports "warden/contexts/custody/ledger-service/ports"
	commandservice "warden/contexts/device-control/command-service"
	"warden/contexts/device-control/command-service/application"
	"warden/contexts/device-control/command-service/domain/entities"
	keyregistryservice "warden/contexts/device-control/key-registry-service"
)

func TestWatchdogRetriesThenTimesOut(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	keys := keyregistryservice.NewInMemoryModule(ledger.Service, nil)
	commands := commandservice.NewInMemoryModule(keys.Service, ledger.Service, nil)
	ctx := context.Background()

	if _, err := keys.Service.RegisterDevice(ctx, "dev_400", "fam_400", testKeyB64(50)); err != nil {
		t.Fatalf("register device failed: %v", err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	commands.Store.SetNow(base)

	issued, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_400",
		DeviceID:    "dev_400",
		CommandType: "DEVICE_LOCK",
		TTLSeconds:  120,
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}
	commandID := issued.Command.CommandID
	originalNonce := issued.Command.Nonce
	originalSignature := issued.Command.SignatureHMAC

	// First sweep: stuck past the threshold with retries left.
	commands.Store.SetNow(base.Add(31 * time.Second))
	if err := commands.Watchdog.RunOnce(ctx); err != nil {
		t.Fatalf("watchdog sweep 1 failed: %v", err)
	}
	cmd, err := commands.Store.GetCommand(ctx, commandID)
	if err != nil {
		t.Fatalf("get command failed: %v", err)
	}
	if cmd.RetryCount != 1 || cmd.Status != entities.StatusQueued {
		t.Fatalf("expected first retry back to QUEUED, got retries=%d status=%s", cmd.RetryCount, cmd.Status)
	}
	if cmd.Nonce == originalNonce {
		t.Fatalf("retry must mint a fresh nonce")
	}
	if cmd.SignatureHMAC == originalSignature {
		t.Fatalf("retry must re-sign the refreshed envelope")
	}
	if !cmd.ExpiresAt.Equal(cmd.IssuedAt.Add(120 * time.Second)) {
		t.Fatalf("retry must preserve the original validity span, got %s", cmd.ExpiresAt.Sub(cmd.IssuedAt))
	}

	// Second sweep: last allowed retry.
	commands.Store.SetNow(base.Add(62 * time.Second))
	if err := commands.Watchdog.RunOnce(ctx); err != nil {
		t.Fatalf("watchdog sweep 2 failed: %v", err)
	}
	cmd, err = commands.Store.GetCommand(ctx, commandID)
	if err != nil {
		t.Fatalf("get command failed: %v", err)
	}
	if cmd.RetryCount != 2 || cmd.Status != entities.StatusQueued {
		t.Fatalf("expected second retry, got retries=%d status=%s", cmd.RetryCount, cmd.Status)
	}

	// Third sweep: retries exhausted, command times out.
	commands.Store.SetNow(base.Add(93 * time.Second))
	if err := commands.Watchdog.RunOnce(ctx); err != nil {
		t.Fatalf("watchdog sweep 3 failed: %v", err)
	}
	cmd, err = commands.Store.GetCommand(ctx, commandID)
	if err != nil {
		t.Fatalf("get command failed: %v", err)
	}
	if cmd.Status != entities.StatusTimedOut {
		t.Fatalf("expected TIMED_OUT after retries, got %s", cmd.Status)
	}
	if cmd.RetryCount != 2 {
		t.Fatalf("timeout must not consume another retry, got %d", cmd.RetryCount)
	}

	critical := commands.Store.Notifications("critical")
	if len(critical) != 1 {
		t.Fatalf("expected exactly one critical notification, got %d", len(critical))
	}
	if critical[0].CommandID != commandID {
		t.Fatalf("critical notification references wrong command: %+v", critical[0])
	}

	pushes := commands.Store.Pushes()
	if len(pushes) != 3 {
		t.Fatalf("expected initial push plus two retry pushes, got %d", len(pushes))
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_400"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	counts := map[string]int{}
	for _, event := range events {
		counts[event.EventKey]++
	}
	if counts["COMMAND_RETRIED"] != 2 {
		t.Fatalf("expected two COMMAND_RETRIED events, got %d", counts["COMMAND_RETRIED"])
	}
	if counts["COMMAND_TIMED_OUT"] != 1 {
		t.Fatalf("expected one COMMAND_TIMED_OUT event, got %d", counts["COMMAND_TIMED_OUT"])
	}

	// A timed-out command is terminal: a later sweep must leave it alone.
	commands.Store.SetNow(base.Add(10 * time.Minute))
	if err := commands.Watchdog.RunOnce(ctx); err != nil {
		t.Fatalf("watchdog sweep 4 failed: %v", err)
	}
	if got := len(commands.Store.Notifications("critical")); got != 1 {
		t.Fatalf("terminal command must not alert again, got %d notifications", got)
	}
}

func TestWatchdogIgnoresAckedCommands(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	keys := keyregistryservice.NewInMemoryModule(ledger.Service, nil)
	commands := commandservice.NewInMemoryModule(keys.Service, ledger.Service, nil)
	ctx := context.Background()

	if _, err := keys.Service.RegisterDevice(ctx, "dev_401", "fam_401", testKeyB64(60)); err != nil {
		t.Fatalf("register device failed: %v", err)
	}

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	commands.Store.SetNow(base)
	issued, err := commands.Service.CreateSignedCommand(ctx, application.IssueInput{
		FamilyID:    "fam_401",
		DeviceID:    "dev_401",
		CommandType: "SIREN_ON",
		Actor:       "parent_1",
	})
	if err != nil {
		t.Fatalf("issue command failed: %v", err)
	}
	if _, err := commands.Service.MarkSent(ctx, issued.Command.CommandID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if _, err := commands.Service.MarkAcked(ctx, issued.Command.CommandID); err != nil {
		t.Fatalf("mark acked failed: %v", err)
	}

	commands.Store.SetNow(base.Add(5 * time.Minute))
	if err := commands.Watchdog.RunOnce(ctx); err != nil {
		t.Fatalf("watchdog sweep failed: %v", err)
	}

	cmd, err := commands.Store.GetCommand(ctx, issued.Command.CommandID)
	if err != nil {
		t.Fatalf("get command failed: %v", err)
	}
	if cmd.Status != entities.StatusAcked || cmd.RetryCount != 0 {
		t.Fatalf("acked command must be untouched, got %+v", cmd)
	}
}
