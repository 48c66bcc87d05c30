package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	commandports "warden/contexts/device-control/command-service/ports"
	geofenceports "warden/contexts/location-safety/geofence-service/ports"
	"warden/internal/shared/events"
)

// AlertNotifier raises operator alerts onto the feed's alert topics.
// Console delivery (push, SMS, email) consumes from there.
type AlertNotifier struct {
	Feed   *Feed
	Logger *slog.Logger
}

var _ commandports.Notifier = (*AlertNotifier)(nil)

func (n *AlertNotifier) NotifyCritical(ctx context.Context, familyID string, deviceID string, commandID string, message string) error {
	return n.publish(ctx, TopicCriticalAlerts, familyID, map[string]any{
		"device_id":  deviceID,
		"command_id": commandID,
		"message":    message,
	})
}

func (n *AlertNotifier) NotifySecurityAlert(ctx context.Context, familyID string, deviceID string, commandID string, message string) error {
	return n.publish(ctx, TopicSecurityAlerts, familyID, map[string]any{
		"device_id":  deviceID,
		"command_id": commandID,
		"message":    message,
	})
}

func (n *AlertNotifier) publish(ctx context.Context, topic string, familyID string, payload map[string]any) error {
	return n.Feed.Publish(ctx, topic, events.Envelope{
		EventID:        uuid.NewString(),
		EventType:      topic,
		SourceService:  "device-control/command-service",
		OccurredAtUTC:  time.Now().UTC(),
		CorrelationID:  familyID,
		EntityType:     "alert",
		EntityID:       familyID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

// ZoneAlertNotifier adapts the same alert topics to the geofence
// engine's subject/body notifications.
type ZoneAlertNotifier struct {
	Feed   *Feed
	Logger *slog.Logger
}

var _ geofenceports.Notifier = (*ZoneAlertNotifier)(nil)

func (n *ZoneAlertNotifier) NotifyCritical(ctx context.Context, familyID string, subject string, body string) error {
	return n.publish(ctx, TopicCriticalAlerts, familyID, subject, body)
}

func (n *ZoneAlertNotifier) NotifySecurityAlert(ctx context.Context, familyID string, subject string, body string) error {
	return n.publish(ctx, TopicSecurityAlerts, familyID, subject, body)
}

func (n *ZoneAlertNotifier) publish(ctx context.Context, topic string, familyID string, subject string, body string) error {
	return n.Feed.Publish(ctx, topic, events.Envelope{
		EventID:        uuid.NewString(),
		EventType:      topic,
		SourceService:  "location-safety/geofence-service",
		OccurredAtUTC:  time.Now().UTC(),
		CorrelationID:  familyID,
		EntityType:     "alert",
		EntityID:       familyID,
		PayloadVersion: 1,
		Payload: map[string]any{
			"subject": subject,
			"body":    body,
		},
	})
}
