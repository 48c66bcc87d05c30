package application

import (
	"context"
	"log/slog"
	"time"

	domainerrors "warden/contexts/device-control/command-service/domain/errors"
	"warden/contexts/device-control/command-service/domain/services"
	"warden/contexts/device-control/command-service/ports"
)

// minNonceRetention keeps very-short-lived nonces in the replay cache a
// little past expiry to absorb clock skew between issuer and device.
const minNonceRetention = 30 * time.Second

// Verifier is the device-side acceptance check. A command is accepted
// iff it was signed with the device's active or pending shared secret,
// sits inside its validity window, and its nonce was never seen before.
// Every rejection is appended to the custody chain as its own event so
// attacks are auditable.
type Verifier struct {
	Keys    ports.DeviceKeyProvider
	Nonces  ports.NonceCache
	Custody ports.CustodyRecorder
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (v Verifier) Accept(ctx context.Context, familyID string, env services.Envelope, signatureHex string) error {
	if env.Version != services.EnvelopeVersion {
		return v.reject(ctx, familyID, env, "unsupported_envelope_version", domainerrors.ErrSignatureMismatch)
	}

	issuedAt, err := time.Parse(time.RFC3339, env.IssuedAt)
	if err != nil {
		return v.reject(ctx, familyID, env, "malformed_issued_at", domainerrors.ErrInvalidCommand)
	}
	expiresAt, err := time.Parse(time.RFC3339, env.ExpiresAt)
	if err != nil {
		return v.reject(ctx, familyID, env, "malformed_expires_at", domainerrors.ErrInvalidCommand)
	}

	now := v.now()
	if now.Before(issuedAt) || now.After(expiresAt) {
		return v.reject(ctx, familyID, env, "outside_validity_window", domainerrors.ErrCommandExpired)
	}

	keys, err := v.Keys.VerificationKeys(ctx, env.DeviceID)
	if err != nil {
		return err
	}
	if !services.VerifySignature(env, signatureHex, keys) {
		return v.reject(ctx, familyID, env, "signature_mismatch", domainerrors.ErrSignatureMismatch)
	}

	// Remember only after the signature clears, so forged envelopes
	// cannot poison the replay cache.
	retention := expiresAt.Sub(now)
	if retention < minNonceRetention {
		retention = minNonceRetention
	}
	fresh, err := v.Nonces.Remember(ctx, env.DeviceID, env.Nonce, retention)
	if err != nil {
		return err
	}
	if !fresh {
		return v.reject(ctx, familyID, env, "nonce_replayed", domainerrors.ErrNonceReplayed)
	}
	return nil
}

func (v Verifier) reject(ctx context.Context, familyID string, env services.Envelope, reason string, cause error) error {
	ResolveLogger(v.Logger).Warn("command rejected by device verifier",
		"event", "command_verifier_rejected",
		"module", "device-control/command-service",
		"layer", "application",
		"command_id", env.CommandID,
		"device_id", env.DeviceID,
		"reason", reason,
	)
	if v.Custody != nil {
		if err := v.Custody.Record(ctx, familyID, env.DeviceID, "", "device-verifier", "COMMAND_REJECTED", map[string]any{
			"command_id": env.CommandID,
			"reason":     reason,
		}); err != nil {
			ResolveLogger(v.Logger).Error("rejection custody append failed",
				"event", "command_rejection_custody_failed",
				"module", "device-control/command-service",
				"layer", "application",
				"command_id", env.CommandID,
				"error", err.Error(),
			)
		}
	}
	return cause
}

func (v Verifier) now() time.Time {
	if v.Clock != nil {
		return v.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
