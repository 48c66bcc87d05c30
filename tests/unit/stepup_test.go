package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	ledgerservice "warden/contexts/custody/ledger-service"
	ledgerports "warden/contexts/custody/ledger-service/ports"
	stepupservice "warden/contexts/identity-access/stepup-service"
	"warden/contexts/identity-access/stepup-service/application"
	domainerrors "warden/contexts/identity-access/stepup-service/domain/errors"
)

var stepupSecret = []byte("test-stepup-secret-material-32by")

func wrongCode(code string) string {
	if code[0] == '9' {
		return "0" + code[1:]
	}
	return "9" + code[1:]
}

func TestStepUpVerifyAndConsumeOnce(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	stepup := stepupservice.NewInMemoryModule(ledger.Service, stepupSecret, nil)
	ctx := context.Background()

	created, err := stepup.Service.CreateSession(ctx, application.CreateInput{
		FamilyID: "fam_500",
		UserID:   "parent_1",
		Purpose:  "issue_device_wipe",
		Scopes:   []string{"device:wipe"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if len(created.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", created.Code)
	}

	// A wrong code fails, is audited, and leaves the session usable.
	if _, err := stepup.Service.Verify(ctx, created.StepUpID, wrongCode(created.Code)); !errors.Is(err, domainerrors.ErrCodeMismatch) {
		t.Fatalf("expected code mismatch, got %v", err)
	}

	verified, err := stepup.Service.Verify(ctx, created.StepUpID, created.Code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verified.Token == "" {
		t.Fatalf("expected a capability token")
	}

	// Re-verifying a verified session is rejected rather than minting a
	// second token.
	if _, err := stepup.Service.Verify(ctx, created.StepUpID, created.Code); !errors.Is(err, domainerrors.ErrSessionVerified) {
		t.Fatalf("expected already-verified rejection, got %v", err)
	}

	claims, err := stepup.Service.Consume(ctx, verified.Token, "device:wipe")
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if claims.FamilyID != "fam_500" || claims.UserID != "parent_1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := stepup.Service.Consume(ctx, verified.Token, "device:wipe"); !errors.Is(err, domainerrors.ErrSessionUsed) {
		t.Fatalf("expected replayed token rejection, got %v", err)
	}

	events, err := ledger.Service.ListEvents(ctx, ledgerports.EventFilter{FamilyID: "fam_500"})
	if err != nil {
		t.Fatalf("list custody events failed: %v", err)
	}
	counts := map[string]int{}
	for _, event := range events {
		counts[event.EventKey]++
	}
	for key, want := range map[string]int{
		"STEPUP_REQUESTED": 1,
		"STEPUP_VERIFIED":  1,
		"STEPUP_CONSUMED":  1,
	} {
		if counts[key] != want {
			t.Fatalf("expected %d %s events, got %d", want, key, counts[key])
		}
	}
	if counts["STEPUP_FAILED"] < 2 {
		t.Fatalf("expected failure events for mismatch and replay, got %d", counts["STEPUP_FAILED"])
	}
}

func TestStepUpScopeEnforcement(t *testing.T) {
	stepup := stepupservice.NewInMemoryModule(nil, stepupSecret, nil)
	ctx := context.Background()

	created, err := stepup.Service.CreateSession(ctx, application.CreateInput{
		FamilyID: "fam_501",
		UserID:   "parent_1",
		Purpose:  "export_evidence",
		Scopes:   []string{"evidence:export"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	verified, err := stepup.Service.Verify(ctx, created.StepUpID, created.Code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if _, err := stepup.Service.Consume(ctx, verified.Token, "device:wipe"); !errors.Is(err, domainerrors.ErrScopeNotGranted) {
		t.Fatalf("expected scope rejection, got %v", err)
	}
	// A failed scope check must not burn the session.
	if _, err := stepup.Service.Consume(ctx, verified.Token, "evidence:export"); err != nil {
		t.Fatalf("consume with granted scope failed: %v", err)
	}
}

func TestStepUpSessionExpiry(t *testing.T) {
	stepup := stepupservice.NewInMemoryModule(nil, stepupSecret, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	stepup.Store.SetNow(base)

	created, err := stepup.Service.CreateSession(ctx, application.CreateInput{
		FamilyID: "fam_502",
		UserID:   "parent_1",
		Purpose:  "issue_device_wipe",
		Scopes:   []string{"device:wipe"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	stepup.Store.SetNow(base.Add(3*time.Minute + time.Second))
	if _, err := stepup.Service.Verify(ctx, created.StepUpID, created.Code); !errors.Is(err, domainerrors.ErrSessionExpired) {
		t.Fatalf("expected expired session rejection, got %v", err)
	}
}

func TestStepUpTokenExpiry(t *testing.T) {
	stepup := stepupservice.NewInMemoryModule(nil, stepupSecret, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	stepup.Store.SetNow(base)

	created, err := stepup.Service.CreateSession(ctx, application.CreateInput{
		FamilyID: "fam_503",
		UserID:   "parent_1",
		Purpose:  "issue_device_wipe",
		Scopes:   []string{"device:wipe"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	verified, err := stepup.Service.Verify(ctx, created.StepUpID, created.Code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	stepup.Store.SetNow(base.Add(5*time.Minute + time.Second))
	if _, err := stepup.Service.Consume(ctx, verified.Token, "device:wipe"); !errors.Is(err, domainerrors.ErrTokenExpired) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestStepUpLocksAfterRepeatedFailures(t *testing.T) {
	ledger := ledgerservice.NewInMemoryModule(nil, nil)
	stepup := stepupservice.NewInMemoryModule(ledger.Service, stepupSecret, nil)
	ctx := context.Background()

	created, err := stepup.Service.CreateSession(ctx, application.CreateInput{
		FamilyID: "fam_504",
		UserID:   "parent_1",
		Purpose:  "issue_device_wipe",
		Scopes:   []string{"device:wipe"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	bad := wrongCode(created.Code)
	for attempt := 1; attempt <= 4; attempt++ {
		if _, err := stepup.Service.Verify(ctx, created.StepUpID, bad); !errors.Is(err, domainerrors.ErrCodeMismatch) {
			t.Fatalf("attempt %d: expected code mismatch, got %v", attempt, err)
		}
	}
	if _, err := stepup.Service.Verify(ctx, created.StepUpID, bad); !errors.Is(err, domainerrors.ErrSessionLocked) {
		t.Fatalf("expected lock on fifth failure, got %v", err)
	}
	// Even the correct code cannot unlock the session.
	if _, err := stepup.Service.Verify(ctx, created.StepUpID, created.Code); !errors.Is(err, domainerrors.ErrSessionLocked) {
		t.Fatalf("expected locked session to stay locked, got %v", err)
	}
}
