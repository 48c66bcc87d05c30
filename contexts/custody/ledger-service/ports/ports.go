package ports

import (
	"context"
	"time"

	"warden/contexts/custody/ledger-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type AppendInput struct {
	FamilyID  string
	DeviceID  string
	UserID    string
	Actor     string
	EventKey  string
	EventJSON []byte
}

// EventFilter selects an ordered slice of a family chain. A Limit of
// zero or less means the full chain; verification replays need it.
type EventFilter struct {
	FamilyID string
	From     time.Time
	To       time.Time
	Limit    int
}

// LedgerRepository persists the hash chain. AppendEvent must treat the
// (family_id, chain_seq) pair as a conditional insert: a second writer
// landing on the same position gets ErrChainConflict, never a fork.
type LedgerRepository interface {
	LatestEvent(ctx context.Context, familyID string) (entities.CustodyEvent, bool, error)
	AppendEvent(ctx context.Context, event entities.CustodyEvent) error
	ListEvents(ctx context.Context, filter EventFilter) ([]entities.CustodyEvent, error)
}

// FeedOutbox hands appended events to the audit feed relay. Entries are
// enqueued by AppendEvent in the same storage operation as the event
// itself and drained by the worker.
type FeedOutbox interface {
	ListPendingFeedEntries(ctx context.Context, limit int) ([]entities.CustodyEvent, error)
	MarkFeedPublished(ctx context.Context, eventIDs []string) error
}

type EventPublisher interface {
	PublishCustodyEvent(ctx context.Context, event entities.CustodyEvent) error
}
