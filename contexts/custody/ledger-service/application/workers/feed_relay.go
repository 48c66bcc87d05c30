package workers

import (
	"context"
	"log/slog"

	application "warden/contexts/custody/ledger-service/application"
	"warden/contexts/custody/ledger-service/ports"
)

// FeedRelay drains the ledger outbox onto the external audit feed.
// Events reach the feed at least once and strictly in chain order per
// family; consumers dedupe on event_id.
type FeedRelay struct {
	Outbox    ports.FeedOutbox
	Publisher ports.EventPublisher
	BatchSize int
	Logger    *slog.Logger
}

func (r FeedRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}

	pending, err := r.Outbox.ListPendingFeedEntries(ctx, batch)
	if err != nil {
		logger.Error("custody feed relay list failed",
			"event", "custody_feed_relay_list_failed",
			"module", "custody/ledger-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	published := make([]string, 0, len(pending))
	for _, event := range pending {
		if err := r.Publisher.PublishCustodyEvent(ctx, event); err != nil {
			logger.Error("custody feed publish failed",
				"event", "custody_feed_publish_failed",
				"module", "custody/ledger-service",
				"layer", "worker",
				"event_id", event.EventID,
				"error", err.Error(),
			)
			break
		}
		published = append(published, event.EventID)
	}
	if len(published) == 0 {
		return nil
	}

	if err := r.Outbox.MarkFeedPublished(ctx, published); err != nil {
		return err
	}
	logger.Info("custody feed relay batch published",
		"event", "custody_feed_relay_published",
		"module", "custody/ledger-service",
		"layer", "worker",
		"published_count", len(published),
	)
	return nil
}
