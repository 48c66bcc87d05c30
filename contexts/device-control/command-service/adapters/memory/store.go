package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"warden/contexts/device-control/command-service/domain/entities"
	domainerrors "warden/contexts/device-control/command-service/domain/errors"
	"warden/contexts/device-control/command-service/ports"
)

type Notification struct {
	Kind      string
	FamilyID  string
	DeviceID  string
	CommandID string
	Message   string
}

type Store struct {
	mu       sync.RWMutex
	commands map[string]entities.DeviceCommand
	nonces   map[string]time.Time

	pushes        []string
	notifications []Notification
	now           time.Time
	sequence      uint64
}

func NewStore() *Store {
	return &Store{
		commands: map[string]entities.DeviceCommand{},
		nonces:   map[string]time.Time{},
	}
}

func (s *Store) SaveCommand(ctx context.Context, cmd entities.DeviceCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.commands {
		if existing.DeviceID == cmd.DeviceID && existing.Nonce == cmd.Nonce {
			return domainerrors.ErrNonceConflict
		}
	}
	s.commands[cmd.CommandID] = cmd
	return nil
}

func (s *Store) UpdateCommand(ctx context.Context, cmd entities.DeviceCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[cmd.CommandID]; !ok {
		return domainerrors.ErrCommandNotFound
	}
	s.commands[cmd.CommandID] = cmd
	return nil
}

func (s *Store) GetCommand(ctx context.Context, commandID string) (entities.DeviceCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cmd, ok := s.commands[commandID]
	if !ok {
		return entities.DeviceCommand{}, domainerrors.ErrCommandNotFound
	}
	return cmd, nil
}

func (s *Store) ListCommands(ctx context.Context, filter ports.CommandFilter) ([]entities.DeviceCommand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.DeviceCommand, 0, len(s.commands))
	for _, cmd := range s.commands {
		if filter.DeviceID != "" && cmd.DeviceID != filter.DeviceID {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(cmd.Status, filter.Statuses) {
			continue
		}
		if !filter.IssuedBefore.IsZero() && !cmd.IssuedAt.Before(filter.IssuedBefore) {
			continue
		}
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) Remember(ctx context.Context, deviceID string, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviceID + ":" + nonce
	now := s.nowLocked()
	if expiry, ok := s.nonces[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.nonces[key] = now.Add(ttl)
	return true, nil
}

func (s *Store) Push(ctx context.Context, deviceID string, commandID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = append(s.pushes, deviceID+":"+commandID)
	return nil
}

func (s *Store) NotifyCritical(ctx context.Context, familyID string, deviceID string, commandID string, message string) error {
	return s.notify("critical", familyID, deviceID, commandID, message)
}

func (s *Store) NotifySecurityAlert(ctx context.Context, familyID string, deviceID string, commandID string, message string) error {
	return s.notify("security_alert", familyID, deviceID, commandID, message)
}

func (s *Store) notify(kind string, familyID string, deviceID string, commandID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, Notification{
		Kind:      kind,
		FamilyID:  familyID,
		DeviceID:  deviceID,
		CommandID: commandID,
		Message:   message,
	})
	return nil
}

// Analyze is a deterministic stand-in for the external cause oracle:
// the tamper probability scales with recent device-reported failures.
func (s *Store) Analyze(ctx context.Context, cmd entities.DeviceCommand, history []entities.DeviceCommand) (ports.CauseAnalysis, error) {
	failed := 0
	for _, item := range history {
		if item.Status == entities.StatusFailed {
			failed++
		}
	}
	analysis := ports.CauseAnalysis{PredictedCause: "device_unreachable", TamperProbability: 0.1}
	if failed > 0 {
		analysis.PredictedCause = "possible_signature_tampering"
		analysis.TamperProbability = 0.5 + 0.1*float64(failed)
		if analysis.TamperProbability > 0.95 {
			analysis.TamperProbability = 0.95
		}
	}
	return analysis, nil
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	n := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("cmd-%d", n), nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowLocked()
}

func (s *Store) nowLocked() time.Time {
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

// SetNow pins the store clock for tests.
func (s *Store) SetNow(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t.UTC()
}

// Pushes returns delivery attempts as "device:command" pairs.
func (s *Store) Pushes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.pushes...)
}

func (s *Store) Notifications(kind string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if kind == "" || strings.EqualFold(n.Kind, kind) {
			out = append(out, n)
		}
	}
	return out
}

func statusIn(status entities.CommandStatus, statuses []entities.CommandStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

var _ ports.CommandRepository = (*Store)(nil)
var _ ports.NonceCache = (*Store)(nil)
var _ ports.Pusher = (*Store)(nil)
var _ ports.Notifier = (*Store)(nil)
var _ ports.CauseOracle = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
