package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"warden/contexts/custody/ledger-service/domain/entities"
	domainerrors "warden/contexts/custody/ledger-service/domain/errors"
	"warden/contexts/custody/ledger-service/ports"
)

type Store struct {
	mu       sync.RWMutex
	chains   map[string][]entities.CustodyEvent
	pending  []entities.CustodyEvent
	now      time.Time
	sequence uint64
}

func NewStore() *Store {
	return &Store{
		chains: map[string][]entities.CustodyEvent{},
	}
}

func (s *Store) LatestEvent(ctx context.Context, familyID string) (entities.CustodyEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[familyID]
	if len(chain) == 0 {
		return entities.CustodyEvent{}, false, nil
	}
	return chain[len(chain)-1], true, nil
}

func (s *Store) AppendEvent(ctx context.Context, event entities.CustodyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[event.FamilyID]
	if event.ChainSeq != int64(len(chain)) {
		return domainerrors.ErrChainConflict
	}
	if len(chain) == 0 {
		if event.PrevHashHex != nil {
			return domainerrors.ErrChainConflict
		}
	} else {
		last := chain[len(chain)-1]
		if event.PrevHashHex == nil || *event.PrevHashHex != last.HashHex {
			return domainerrors.ErrChainConflict
		}
	}

	s.chains[event.FamilyID] = append(chain, event)
	s.pending = append(s.pending, event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, filter ports.EventFilter) ([]entities.CustodyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[filter.FamilyID]
	out := make([]entities.CustodyEvent, 0, len(chain))
	for _, event := range chain {
		if !filter.From.IsZero() && event.EventAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && event.EventAt.After(filter.To) {
			continue
		}
		out = append(out, event)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListPendingFeedEntries(ctx context.Context, limit int) ([]entities.CustodyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.pending) {
		limit = len(s.pending)
	}
	return append([]entities.CustodyEvent(nil), s.pending[:limit]...), nil
}

func (s *Store) MarkFeedPublished(ctx context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	published := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		published[id] = true
	}
	remaining := make([]entities.CustodyEvent, 0, len(s.pending))
	for _, event := range s.pending {
		if !published[event.EventID] {
			remaining = append(remaining, event)
		}
	}
	s.pending = remaining
	return nil
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	n := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("evt-%d", n), nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
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

// TamperEventJSON rewrites a stored event body in place, bypassing the
// append-only contract. Test hook for chain verification.
func (s *Store) TamperEventJSON(familyID string, chainSeq int64, body []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.chains[familyID]
	for i := range chain {
		if chain[i].ChainSeq == chainSeq {
			chain[i].EventJSON = append(json.RawMessage(nil), body...)
			return true
		}
	}
	return false
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.FeedOutbox = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
