package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/contexts/custody/ledger-service/domain/entities"
	domainerrors "warden/contexts/custody/ledger-service/domain/errors"
	"warden/contexts/custody/ledger-service/ports"
)

// appendAttempts bounds the read-latest/compute/insert retry loop when
// concurrent writers race for the same chain position.
const appendAttempts = 5

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Service struct {
	Repo        ports.LedgerRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (s Service) Append(ctx context.Context, input ports.AppendInput) (entities.CustodyEvent, error) {
	input.FamilyID = strings.TrimSpace(input.FamilyID)
	input.DeviceID = strings.TrimSpace(input.DeviceID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.Actor = strings.TrimSpace(input.Actor)
	input.EventKey = strings.TrimSpace(input.EventKey)

	if input.FamilyID == "" || input.Actor == "" || input.EventKey == "" {
		return entities.CustodyEvent{}, domainerrors.ErrInvalidEvent
	}
	if len(input.EventJSON) == 0 {
		input.EventJSON = []byte("{}")
	}
	if !json.Valid(input.EventJSON) {
		return entities.CustodyEvent{}, domainerrors.ErrInvalidEvent
	}

	for attempt := 0; attempt < appendAttempts; attempt++ {
		latest, found, err := s.Repo.LatestEvent(ctx, input.FamilyID)
		if err != nil {
			return entities.CustodyEvent{}, err
		}

		var prevHash *string
		var seq int64
		if found {
			hash := latest.HashHex
			prevHash = &hash
			seq = latest.ChainSeq + 1
		}

		eventID, err := s.newID(ctx)
		if err != nil {
			return entities.CustodyEvent{}, err
		}
		now := s.now()

		hashHex, err := entities.ComputeHash(input.FamilyID, input.Actor, input.EventKey, now, prevHash, input.EventJSON)
		if err != nil {
			return entities.CustodyEvent{}, err
		}

		event := entities.CustodyEvent{
			EventID:     eventID,
			FamilyID:    input.FamilyID,
			DeviceID:    input.DeviceID,
			UserID:      input.UserID,
			Actor:       input.Actor,
			EventKey:    input.EventKey,
			EventAt:     now,
			EventJSON:   append(json.RawMessage(nil), input.EventJSON...),
			PrevHashHex: prevHash,
			HashHex:     hashHex,
			ChainSeq:    seq,
		}

		err = s.Repo.AppendEvent(ctx, event)
		if errors.Is(err, domainerrors.ErrChainConflict) {
			continue
		}
		if err != nil {
			return entities.CustodyEvent{}, err
		}

		ResolveLogger(s.Logger).Debug("custody event appended",
			"event", "custody_event_appended",
			"module", "custody/ledger-service",
			"layer", "application",
			"family_id", input.FamilyID,
			"event_key", input.EventKey,
			"chain_seq", seq,
		)
		return event, nil
	}

	ResolveLogger(s.Logger).Error("custody append exhausted retries",
		"event", "custody_append_contention",
		"module", "custody/ledger-service",
		"layer", "application",
		"family_id", input.FamilyID,
		"event_key", input.EventKey,
	)
	return entities.CustodyEvent{}, domainerrors.ErrChainContention
}

// Record is the convenience write used by the other modules. The payload
// is marshalled into the event body; an unmarshalable payload is an
// input validation failure and never reaches the chain.
func (s Service) Record(
	ctx context.Context,
	familyID string,
	deviceID string,
	userID string,
	actor string,
	eventKey string,
	payload any,
) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return domainerrors.ErrInvalidEvent
		}
		body = raw
	}
	_, err := s.Append(ctx, ports.AppendInput{
		FamilyID:  familyID,
		DeviceID:  deviceID,
		UserID:    userID,
		Actor:     actor,
		EventKey:  eventKey,
		EventJSON: body,
	})
	return err
}

type ChainReport struct {
	FamilyID      string
	EventCount    int
	Valid         bool
	BrokenEventID string
	BrokenSeq     int64
	Reason        string
}

// VerifyChain replays the family chain, recomputing every hash and
// checking linkage. The first break wins; anything after it is suspect
// by construction.
func (s Service) VerifyChain(ctx context.Context, familyID string) (ChainReport, error) {
	familyID = strings.TrimSpace(familyID)
	if familyID == "" {
		return ChainReport{}, domainerrors.ErrInvalidEvent
	}

	events, err := s.Repo.ListEvents(ctx, ports.EventFilter{FamilyID: familyID})
	if err != nil {
		return ChainReport{}, err
	}

	report := ChainReport{FamilyID: familyID, EventCount: len(events), Valid: true}
	var prevHash *string
	for _, event := range events {
		recomputed, err := event.Recompute()
		if err != nil {
			return ChainReport{}, err
		}
		if recomputed != event.HashHex {
			return s.broken(report, event, "stored hash does not match recomputed hash"), nil
		}
		if !sameLink(prevHash, event.PrevHashHex) {
			return s.broken(report, event, "prev_hash_hex does not match predecessor"), nil
		}
		hash := event.HashHex
		prevHash = &hash
	}
	return report, nil
}

func (s Service) broken(report ChainReport, event entities.CustodyEvent, reason string) ChainReport {
	report.Valid = false
	report.BrokenEventID = event.EventID
	report.BrokenSeq = event.ChainSeq
	report.Reason = reason
	ResolveLogger(s.Logger).Error("custody chain break detected",
		"event", "custody_chain_broken",
		"module", "custody/ledger-service",
		"layer", "application",
		"family_id", report.FamilyID,
		"broken_event_id", event.EventID,
		"chain_seq", event.ChainSeq,
		"reason", reason,
	)
	return report
}

func (s Service) ListEvents(ctx context.Context, filter ports.EventFilter) ([]entities.CustodyEvent, error) {
	filter.FamilyID = strings.TrimSpace(filter.FamilyID)
	if filter.FamilyID == "" {
		return nil, domainerrors.ErrInvalidEvent
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.Repo.ListEvents(ctx, filter)
}

// RenderChainReport produces the human-readable custody history bundled
// into evidence packages: one line per event plus a verification footer.
func (s Service) RenderChainReport(ctx context.Context, familyID string) (string, error) {
	events, err := s.Repo.ListEvents(ctx, ports.EventFilter{FamilyID: strings.TrimSpace(familyID)})
	if err != nil {
		return "", err
	}
	verification, err := s.VerifyChain(ctx, familyID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Custody chain for family %s (%d events)\n\n", familyID, len(events))
	for _, event := range events {
		prev := "(genesis)"
		if event.PrevHashHex != nil {
			prev = *event.PrevHashHex
		}
		fmt.Fprintf(&b, "#%d %s %s actor=%s", event.ChainSeq, event.EventAt.UTC().Format(time.RFC3339), event.EventKey, event.Actor)
		if event.DeviceID != "" {
			fmt.Fprintf(&b, " device=%s", event.DeviceID)
		}
		if event.UserID != "" {
			fmt.Fprintf(&b, " user=%s", event.UserID)
		}
		fmt.Fprintf(&b, "\n    hash=%s\n    prev=%s\n", event.HashHex, prev)
	}
	if verification.Valid {
		fmt.Fprintf(&b, "\nChain verification: OK\n")
	} else {
		fmt.Fprintf(&b, "\nChain verification: BROKEN at #%d (%s): %s\n",
			verification.BrokenSeq, verification.BrokenEventID, verification.Reason)
	}
	return b.String(), nil
}

// now truncates to microseconds before the timestamp enters the hash:
// the timestamp column keeps at most microsecond precision, so a hash
// computed over nanoseconds would stop replaying after one storage
// round trip.
func (s Service) now() time.Time {
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	return now.UTC().Truncate(time.Microsecond)
}

func (s Service) newID(ctx context.Context) (string, error) {
	if s.IDGenerator != nil {
		return s.IDGenerator.NewID(ctx)
	}
	return "", errors.New("id generator is not configured")
}

func sameLink(expected *string, got *string) bool {
	if expected == nil || got == nil {
		return expected == nil && got == nil
	}
	return *expected == *got
}
