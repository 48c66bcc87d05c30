package workers

import (
	"context"
	"log/slog"
	"time"

	application "warden/contexts/device-control/command-service/application"
	"warden/contexts/device-control/command-service/domain/entities"
	"warden/contexts/device-control/command-service/domain/services"
	"warden/contexts/device-control/command-service/ports"
)

const (
	defaultStuckAfter    = 30 * time.Second
	defaultMaxRetries    = 2
	defaultOracleTimeout = 2 * time.Second
	defaultBatchSize     = 100
)

// Watchdog reconciles commands the device never acknowledged. A stuck
// command is retried with a fresh nonce and expiry (the stale envelope
// is never resent, so a late partial delivery cannot be confused with
// the retry); once retries are exhausted it is timed out, the family is
// notified, and the cause oracle is consulted best-effort.
type Watchdog struct {
	Repo          ports.CommandRepository
	Keys          ports.DeviceKeyProvider
	Custody       ports.CustodyRecorder
	Pusher        ports.Pusher
	Notifier      ports.Notifier
	Oracle        ports.CauseOracle
	Clock         ports.Clock
	StuckAfter    time.Duration
	MaxRetries    int
	OracleTimeout time.Duration
	BatchSize     int
	Logger        *slog.Logger
}

func (w Watchdog) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	now := w.now()

	stuck, err := w.Repo.ListCommands(ctx, ports.CommandFilter{
		Statuses:     []entities.CommandStatus{entities.StatusQueued, entities.StatusSent, entities.StatusDelivered},
		IssuedBefore: now.Add(-w.stuckAfter()),
		Limit:        w.batchSize(),
	})
	if err != nil {
		logger.Error("watchdog sweep failed",
			"event", "command_watchdog_sweep_failed",
			"module", "device-control/command-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, cmd := range stuck {
		if cmd.RetryCount < w.maxRetries() {
			w.retry(ctx, cmd, now)
		} else {
			w.timeOut(ctx, cmd, now)
		}
	}
	return nil
}

func (w Watchdog) retry(ctx context.Context, cmd entities.DeviceCommand, now time.Time) {
	logger := application.ResolveLogger(w.Logger)

	key, keyVersion, err := w.Keys.SigningKey(ctx, cmd.DeviceID)
	if err != nil {
		logger.Error("watchdog re-sign key lookup failed",
			"event", "command_watchdog_resign_failed",
			"module", "device-control/command-service",
			"layer", "worker",
			"command_id", cmd.CommandID,
			"error", err.Error(),
		)
		return
	}

	ttl := cmd.ExpiresAt.Sub(cmd.IssuedAt)
	nonce, err := application.NewNonce()
	if err != nil {
		return
	}
	cmd.Nonce = nonce
	cmd.IssuedAt = now
	cmd.ExpiresAt = now.Add(ttl)
	cmd.KeyVersion = keyVersion
	cmd.RetryCount++
	cmd.Status = entities.StatusQueued
	cmd.UpdatedAt = now

	envelope := services.BuildEnvelope(cmd)
	cmd.SignatureHMAC, err = services.Sign(envelope, key)
	if err != nil {
		return
	}

	if err := w.Repo.UpdateCommand(ctx, cmd); err != nil {
		logger.Error("watchdog retry persist failed",
			"event", "command_watchdog_retry_persist_failed",
			"module", "device-control/command-service",
			"layer", "worker",
			"command_id", cmd.CommandID,
			"error", err.Error(),
		)
		return
	}
	w.record(ctx, cmd, "COMMAND_RETRIED", map[string]any{
		"command_id":  cmd.CommandID,
		"retry_count": cmd.RetryCount,
	})
	if w.Pusher != nil {
		if err := w.Pusher.Push(ctx, cmd.DeviceID, cmd.CommandID); err != nil {
			logger.Warn("watchdog re-push failed",
				"event", "command_watchdog_repush_failed",
				"module", "device-control/command-service",
				"layer", "worker",
				"command_id", cmd.CommandID,
				"error", err.Error(),
			)
		}
	}
	logger.Info("stuck command retried",
		"event", "command_watchdog_retried",
		"module", "device-control/command-service",
		"layer", "worker",
		"command_id", cmd.CommandID,
		"retry_count", cmd.RetryCount,
	)
}

func (w Watchdog) timeOut(ctx context.Context, cmd entities.DeviceCommand, now time.Time) {
	logger := application.ResolveLogger(w.Logger)

	cmd.Status = entities.StatusTimedOut
	cmd.UpdatedAt = now
	if err := w.Repo.UpdateCommand(ctx, cmd); err != nil {
		logger.Error("watchdog timeout persist failed",
			"event", "command_watchdog_timeout_persist_failed",
			"module", "device-control/command-service",
			"layer", "worker",
			"command_id", cmd.CommandID,
			"error", err.Error(),
		)
		return
	}
	w.record(ctx, cmd, "COMMAND_TIMED_OUT", map[string]any{
		"command_id":  cmd.CommandID,
		"retry_count": cmd.RetryCount,
	})

	if w.Notifier != nil {
		if err := w.Notifier.NotifyCritical(ctx, cmd.FamilyID, cmd.DeviceID, cmd.CommandID, "remote command timed out after retries"); err != nil {
			logger.Warn("timeout notification failed",
				"event", "command_watchdog_notify_failed",
				"module", "device-control/command-service",
				"layer", "worker",
				"command_id", cmd.CommandID,
				"error", err.Error(),
			)
		}
	}

	w.consultOracle(ctx, cmd)
}

// consultOracle asks the external cause analysis for a verdict. Runs
// under its own short deadline and only logs the outcome; the timeout
// transition has already been committed.
func (w Watchdog) consultOracle(ctx context.Context, cmd entities.DeviceCommand) {
	if w.Oracle == nil {
		return
	}
	logger := application.ResolveLogger(w.Logger)

	octx, cancel := context.WithTimeout(ctx, w.oracleTimeout())
	defer cancel()

	history, err := w.Repo.ListCommands(octx, ports.CommandFilter{DeviceID: cmd.DeviceID, Limit: 20})
	if err != nil {
		history = nil
	}
	analysis, err := w.Oracle.Analyze(octx, cmd, history)
	if err != nil {
		logger.Warn("cause oracle unavailable",
			"event", "command_watchdog_oracle_failed",
			"module", "device-control/command-service",
			"layer", "worker",
			"command_id", cmd.CommandID,
			"error", err.Error(),
		)
		return
	}
	logger.Info("cause oracle verdict",
		"event", "command_watchdog_oracle_verdict",
		"module", "device-control/command-service",
		"layer", "worker",
		"command_id", cmd.CommandID,
		"predicted_cause", analysis.PredictedCause,
		"tamper_probability", analysis.TamperProbability,
	)
}

func (w Watchdog) record(ctx context.Context, cmd entities.DeviceCommand, eventKey string, payload map[string]any) {
	if w.Custody == nil {
		return
	}
	if err := w.Custody.Record(ctx, cmd.FamilyID, cmd.DeviceID, "", "command-watchdog", eventKey, payload); err != nil {
		application.ResolveLogger(w.Logger).Error("watchdog custody append failed",
			"event", "command_watchdog_custody_failed",
			"module", "device-control/command-service",
			"layer", "worker",
			"command_id", cmd.CommandID,
			"event_key", eventKey,
			"error", err.Error(),
		)
	}
}

func (w Watchdog) now() time.Time {
	if w.Clock != nil {
		return w.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (w Watchdog) stuckAfter() time.Duration {
	if w.StuckAfter > 0 {
		return w.StuckAfter
	}
	return defaultStuckAfter
}

func (w Watchdog) maxRetries() int {
	if w.MaxRetries > 0 {
		return w.MaxRetries
	}
	return defaultMaxRetries
}

func (w Watchdog) oracleTimeout() time.Duration {
	if w.OracleTimeout > 0 {
		return w.OracleTimeout
	}
	return defaultOracleTimeout
}

func (w Watchdog) batchSize() int {
	if w.BatchSize > 0 {
		return w.BatchSize
	}
	return defaultBatchSize
}
