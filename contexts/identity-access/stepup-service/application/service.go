package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"warden/contexts/identity-access/stepup-service/domain/entities"
	domainerrors "warden/contexts/identity-access/stepup-service/domain/errors"
	"warden/contexts/identity-access/stepup-service/domain/services"
	"warden/contexts/identity-access/stepup-service/ports"
)

const (
	defaultSessionTTL = 3 * time.Minute
	defaultTokenTTL   = 5 * time.Minute
	maxFailedAttempts = 5
)

type Service struct {
	Repo        ports.SessionRepository
	Custody     ports.CustodyRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	TokenSecret []byte
	SessionTTL  time.Duration
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

type CreateInput struct {
	FamilyID string
	UserID   string
	Purpose  string
	Scopes   []string
}

type CreateResult struct {
	StepUpID  string
	ExpiresAt time.Time
	// Code is returned for out-of-band delivery to the user and is
	// never persisted.
	Code string
}

func (s Service) CreateSession(ctx context.Context, input CreateInput) (CreateResult, error) {
	input.FamilyID = strings.TrimSpace(input.FamilyID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.Purpose = strings.TrimSpace(input.Purpose)
	scopes := normalizeScopes(input.Scopes)
	if input.FamilyID == "" || input.UserID == "" || input.Purpose == "" || len(scopes) == 0 {
		return CreateResult{}, domainerrors.ErrInvalidRequest
	}

	stepupID, err := s.newID(ctx)
	if err != nil {
		return CreateResult{}, err
	}
	code, err := generateCode()
	if err != nil {
		return CreateResult{}, err
	}

	now := s.now()
	session := entities.StepUpSession{
		StepUpID:  stepupID,
		FamilyID:  input.FamilyID,
		UserID:    input.UserID,
		Purpose:   input.Purpose,
		Scopes:    scopes,
		CodeHash:  entities.HashCode(code),
		ExpiresAt: now.Add(s.sessionTTL()),
		CreatedAt: now,
	}
	if err := s.Repo.SaveSession(ctx, session); err != nil {
		return CreateResult{}, err
	}

	s.record(ctx, session, "STEPUP_REQUESTED", map[string]any{
		"stepup_id": session.StepUpID,
		"purpose":   session.Purpose,
		"scopes":    session.Scopes,
	})
	return CreateResult{StepUpID: stepupID, ExpiresAt: session.ExpiresAt, Code: code}, nil
}

type VerifyResult struct {
	Token     string
	ExpiresAt time.Time
}

func (s Service) Verify(ctx context.Context, stepupID string, code string) (VerifyResult, error) {
	session, err := s.Repo.GetSession(ctx, strings.TrimSpace(stepupID))
	if err != nil {
		return VerifyResult{}, err
	}
	now := s.now()

	switch {
	case session.Used():
		return VerifyResult{}, domainerrors.ErrSessionUsed
	case session.Verified():
		return VerifyResult{}, domainerrors.ErrSessionVerified
	case session.FailedAttempts >= maxFailedAttempts:
		return VerifyResult{}, domainerrors.ErrSessionLocked
	case session.ExpiredAt(now):
		s.record(ctx, session, "STEPUP_FAILED", map[string]any{
			"stepup_id": session.StepUpID,
			"reason":    "session_expired",
		})
		return VerifyResult{}, domainerrors.ErrSessionExpired
	}

	if entities.HashCode(strings.TrimSpace(code)) != session.CodeHash {
		session.FailedAttempts++
		if err := s.Repo.UpdateSession(ctx, session); err != nil {
			return VerifyResult{}, err
		}
		s.record(ctx, session, "STEPUP_FAILED", map[string]any{
			"stepup_id":       session.StepUpID,
			"reason":          "code_mismatch",
			"failed_attempts": session.FailedAttempts,
		})
		if session.FailedAttempts >= maxFailedAttempts {
			return VerifyResult{}, domainerrors.ErrSessionLocked
		}
		return VerifyResult{}, domainerrors.ErrCodeMismatch
	}

	verifiedAt := now
	session.VerifiedAt = &verifiedAt
	if err := s.Repo.UpdateSession(ctx, session); err != nil {
		return VerifyResult{}, err
	}
	s.record(ctx, session, "STEPUP_VERIFIED", map[string]any{
		"stepup_id": session.StepUpID,
	})

	tokenExpiry := now.Add(s.tokenTTL())
	token, err := services.SignToken(services.TokenClaims{
		FamilyID:  session.FamilyID,
		UserID:    session.UserID,
		StepUpID:  session.StepUpID,
		Scopes:    session.Scopes,
		ExpiresAt: tokenExpiry,
	}, s.TokenSecret)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Token: token, ExpiresAt: tokenExpiry}, nil
}

// Consume authorizes exactly one privileged action. The session claim
// is a compare-and-set in the repository, so a replayed token loses the
// race even under concurrent consumers.
func (s Service) Consume(ctx context.Context, token string, requiredScope string) (services.TokenClaims, error) {
	claims, err := services.ParseToken(token, s.TokenSecret)
	if err != nil {
		return services.TokenClaims{}, err
	}
	now := s.now()
	if now.After(claims.ExpiresAt) {
		return services.TokenClaims{}, domainerrors.ErrTokenExpired
	}

	requiredScope = strings.TrimSpace(requiredScope)
	if !scopeIn(requiredScope, claims.Scopes) {
		return services.TokenClaims{}, domainerrors.ErrScopeNotGranted
	}

	session, err := s.Repo.GetSession(ctx, claims.StepUpID)
	if err != nil {
		return services.TokenClaims{}, err
	}
	if err := s.Repo.ConsumeSession(ctx, claims.StepUpID, now); err != nil {
		s.record(ctx, session, "STEPUP_FAILED", map[string]any{
			"stepup_id": session.StepUpID,
			"reason":    "replay_or_unverified_consume",
			"scope":     requiredScope,
		})
		return services.TokenClaims{}, err
	}

	s.record(ctx, session, "STEPUP_CONSUMED", map[string]any{
		"stepup_id": session.StepUpID,
		"scope":     requiredScope,
	})
	return claims, nil
}

func (s Service) record(ctx context.Context, session entities.StepUpSession, eventKey string, payload map[string]any) {
	if s.Custody == nil {
		return
	}
	if err := s.Custody.Record(ctx, session.FamilyID, "", session.UserID, "stepup-service", eventKey, payload); err != nil {
		ResolveLogger(s.Logger).Error("step-up custody append failed",
			"event", "stepup_custody_append_failed",
			"module", "identity-access/stepup-service",
			"layer", "application",
			"stepup_id", session.StepUpID,
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
		return "", domainerrors.ErrInvalidRequest
	}
	return s.IDGenerator.NewID(ctx)
}

func (s Service) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return defaultSessionTTL
}

func (s Service) tokenTTL() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return defaultTokenTTL
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	seen := map[string]bool{}
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" || seen[scope] {
			continue
		}
		seen[scope] = true
		out = append(out, scope)
	}
	return out
}

func scopeIn(scope string, scopes []string) bool {
	for _, candidate := range scopes {
		if candidate == scope {
			return true
		}
	}
	return false
}
