package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warden/contexts/identity-access/stepup-service/domain/entities"
	domainerrors "warden/contexts/identity-access/stepup-service/domain/errors"
	"warden/contexts/identity-access/stepup-service/ports"
)

// Store is the in-memory step-up session repository used by tests and
// the in-memory module wiring.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entities.StepUpSession
	sequence int
	now      time.Time
}

var _ ports.SessionRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		sessions: map[string]entities.StepUpSession{},
		now:      time.Now().UTC(),
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
	return fmt.Sprintf("stepup-%d", s.sequence), nil
}

func (s *Store) SaveSession(ctx context.Context, session entities.StepUpSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.StepUpID] = cloneSession(session)
	return nil
}

func (s *Store) GetSession(ctx context.Context, stepupID string) (entities.StepUpSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[stepupID]
	if !ok {
		return entities.StepUpSession{}, domainerrors.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *Store) UpdateSession(ctx context.Context, session entities.StepUpSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.StepUpID]; !ok {
		return domainerrors.ErrSessionNotFound
	}
	s.sessions[session.StepUpID] = cloneSession(session)
	return nil
}

func (s *Store) ConsumeSession(ctx context.Context, stepupID string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[stepupID]
	if !ok {
		return domainerrors.ErrSessionNotFound
	}
	if session.UsedAt != nil {
		return domainerrors.ErrSessionUsed
	}
	if session.VerifiedAt == nil {
		return domainerrors.ErrSessionNotVerified
	}
	usedAt = usedAt.UTC()
	session.UsedAt = &usedAt
	s.sessions[stepupID] = session
	return nil
}

func cloneSession(session entities.StepUpSession) entities.StepUpSession {
	out := session
	out.Scopes = append([]string(nil), session.Scopes...)
	if session.VerifiedAt != nil {
		verifiedAt := *session.VerifiedAt
		out.VerifiedAt = &verifiedAt
	}
	if session.UsedAt != nil {
		usedAt := *session.UsedAt
		out.UsedAt = &usedAt
	}
	return out
}
