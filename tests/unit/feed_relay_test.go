package unit

import (
	"context"
	"errors"
	"testing"

	ledgerservice "warden/contexts/custody/ledger-service"
	"warden/contexts/custody/ledger-service/domain/entities"
	ledgerports "warden/contexts/custody/ledger-service/ports"
)

func appendInput(familyID string, eventKey string) ledgerports.AppendInput {
	return ledgerports.AppendInput{
		FamilyID: familyID,
		Actor:    "test-writer",
		EventKey: eventKey,
	}
}

type recordingPublisher struct {
	published []string
	failAfter int
}

func (p *recordingPublisher) PublishCustodyEvent(ctx context.Context, event entities.CustodyEvent) error {
	if p.failAfter > 0 && len(p.published) >= p.failAfter {
		return errors.New("feed unavailable")
	}
	p.published = append(p.published, event.EventID)
	return nil
}

func TestFeedRelayPublishesInChainOrder(t *testing.T) {
	publisher := &recordingPublisher{}
	ledger := ledgerservice.NewInMemoryModule(publisher, nil)
	ctx := context.Background()

	var want []string
	for i := 0; i < 3; i++ {
		event, err := ledger.Service.Append(ctx, appendInput("fam_800", "GEOFENCE_ENTER"))
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		want = append(want, event.EventID)
	}

	if err := ledger.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.published) != 3 {
		t.Fatalf("expected 3 published events, got %d", len(publisher.published))
	}
	for i, id := range want {
		if publisher.published[i] != id {
			t.Fatalf("expected chain order %v, got %v", want, publisher.published)
		}
	}

	// The outbox is drained: a second run publishes nothing new.
	if err := ledger.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("second relay run failed: %v", err)
	}
	if len(publisher.published) != 3 {
		t.Fatalf("drained outbox must not republish, got %d", len(publisher.published))
	}
}

func TestFeedRelayKeepsUnpublishedEntries(t *testing.T) {
	publisher := &recordingPublisher{failAfter: 1}
	ledger := ledgerservice.NewInMemoryModule(publisher, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := ledger.Service.Append(ctx, appendInput("fam_801", "STEPUP_VERIFIED")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if err := ledger.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one event through before the failure, got %d", len(publisher.published))
	}

	// Once the feed recovers, the held-back entry goes out.
	publisher.failAfter = 0
	if err := ledger.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("recovery relay run failed: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected the held-back entry after recovery, got %d", len(publisher.published))
	}
}
