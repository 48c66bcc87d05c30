package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	ledgerentities "warden/contexts/custody/ledger-service/domain/entities"
	ledgerports "warden/contexts/custody/ledger-service/ports"
	"warden/internal/shared/events"
)

// Topics carried on the feed.
const (
	TopicCustodyEvents  = "custody.events"
	TopicCriticalAlerts = "alerts.critical"
	TopicSecurityAlerts = "alerts.security"
)

// Feed is the audit event bus. Current implementation is in-process
// publish/subscribe while runtime wiring is finalized for external
// brokers.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Envelope
	logger      *slog.Logger
}

var _ ledgerports.EventPublisher = (*Feed)(nil)

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		subscribers: make(map[string][]chan events.Envelope),
		logger:      logger,
	}
}

func (f *Feed) Publish(ctx context.Context, topic string, event events.Envelope) error {
	f.mu.RLock()
	subs := append([]chan events.Envelope(nil), f.subscribers[topic]...)
	f.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			if f.logger != nil {
				f.logger.Warn("dropping event for slow subscriber",
					"event", "feed_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", event.EventID,
				)
			}
		}
	}

	if f.logger != nil {
		f.logger.Info("event published",
			"event", "feed_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	return nil
}

// PublishCustodyEvent places an appended ledger event on the feed so
// downstream consumers see the chain in order.
func (f *Feed) PublishCustodyEvent(ctx context.Context, event ledgerentities.CustodyEvent) error {
	var payload any
	if len(event.EventJSON) > 0 {
		payload = json.RawMessage(event.EventJSON)
	}
	return f.Publish(ctx, TopicCustodyEvents, events.Envelope{
		EventID:        event.EventID,
		EventType:      event.EventKey,
		SourceService:  "custody/ledger-service",
		OccurredAtUTC:  event.EventAt,
		CorrelationID:  event.FamilyID,
		EntityType:     "custody_event",
		EntityID:       event.EventID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

func (f *Feed) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	ch := make(chan events.Envelope, 128)

	f.mu.Lock()
	f.subscribers[topic] = append(f.subscribers[topic], ch)
	f.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				f.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil && f.logger != nil {
					f.logger.Error("consumer handler failed",
						"event", "feed_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (f *Feed) removeSubscriber(topic string, target chan events.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	f.subscribers[topic] = filtered
}
