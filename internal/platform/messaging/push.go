package messaging

import (
	"context"
	"log/slog"
	"sync"

	commandports "warden/contexts/device-control/command-service/ports"
)

// PushChannel fans a command identifier out to the subscribers of one
// device. Delivery is opaque to the issuer; a device that never
// confirms is the watchdog's problem, not the pusher's.
type PushChannel struct {
	mu          sync.RWMutex
	subscribers map[string][]chan string
	logger      *slog.Logger
}

var _ commandports.Pusher = (*PushChannel)(nil)

func NewPushChannel(logger *slog.Logger) *PushChannel {
	return &PushChannel{
		subscribers: make(map[string][]chan string),
		logger:      logger,
	}
}

func (p *PushChannel) Push(ctx context.Context, deviceID string, commandID string) error {
	p.mu.RLock()
	subs := append([]chan string(nil), p.subscribers[deviceID]...)
	p.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- commandID:
		default:
			if p.logger != nil {
				p.logger.Warn("dropping push for slow device subscriber",
					"event", "push_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"device_id", deviceID,
					"command_id", commandID,
				)
			}
		}
	}

	if p.logger != nil {
		p.logger.Info("command pushed",
			"event", "push_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"device_id", deviceID,
			"command_id", commandID,
		)
	}
	return nil
}

// SubscribeDevice delivers pushed command ids to handler until ctx ends.
func (p *PushChannel) SubscribeDevice(ctx context.Context, deviceID string, handler func(context.Context, string) error) error {
	ch := make(chan string, 16)

	p.mu.Lock()
	p.subscribers[deviceID] = append(p.subscribers[deviceID], ch)
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.removeDevice(deviceID, ch)
				return
			case commandID := <-ch:
				if err := handler(ctx, commandID); err != nil && p.logger != nil {
					p.logger.Error("device push handler failed",
						"event", "push_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"device_id", deviceID,
						"command_id", commandID,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (p *PushChannel) removeDevice(deviceID string, target chan string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := p.subscribers[deviceID]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan string, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	p.subscribers[deviceID] = filtered
}
