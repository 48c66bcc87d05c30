package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"warden/contexts/device-control/command-service/domain/entities"
)

// EnvelopeVersion is bumped whenever the canonical field set changes;
// devices reject versions they do not understand.
const EnvelopeVersion = 1

// Envelope is the exact byte contract signed by the issuer and
// recomputed by the device.
type Envelope struct {
	CommandID   string          `json:"command_id"`
	CommandType string          `json:"command_type"`
	DeviceID    string          `json:"device_id"`
	ExpiresAt   string          `json:"expires_at_iso"`
	IncidentID  string          `json:"incident_id"`
	IssuedAt    string          `json:"issued_at_iso"`
	Nonce       string          `json:"nonce"`
	Payload     json.RawMessage `json:"payload"`
	Version     int             `json:"version"`
}

func BuildEnvelope(cmd entities.DeviceCommand) Envelope {
	return Envelope{
		CommandID:   cmd.CommandID,
		CommandType: cmd.CommandType,
		DeviceID:    cmd.DeviceID,
		ExpiresAt:   cmd.ExpiresAt.UTC().Format(time.RFC3339),
		IncidentID:  cmd.IncidentID,
		IssuedAt:    cmd.IssuedAt.UTC().Format(time.RFC3339),
		Nonce:       cmd.Nonce,
		Payload:     cmd.PayloadJSON,
		Version:     EnvelopeVersion,
	}
}

// CanonicalBytes renders the envelope as sorted-key JSON. Marshalling a
// map pins the key order, so issuer and device hash identical bytes.
func CanonicalBytes(env Envelope) ([]byte, error) {
	return json.Marshal(map[string]any{
		"command_id":     env.CommandID,
		"command_type":   env.CommandType,
		"device_id":      env.DeviceID,
		"expires_at_iso": env.ExpiresAt,
		"incident_id":    env.IncidentID,
		"issued_at_iso":  env.IssuedAt,
		"nonce":          env.Nonce,
		"payload":        env.Payload,
		"version":        env.Version,
	})
}

// Sign computes the hex HMAC-SHA256 of the canonical envelope.
func Sign(env Envelope, key []byte) (string, error) {
	canonical, err := CanonicalBytes(env)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature checks the signature against each candidate key in
// order (active first, then pending rotation key). Comparison is
// constant-time per key.
func VerifySignature(env Envelope, signatureHex string, keys [][]byte) bool {
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	canonical, err := CanonicalBytes(env)
	if err != nil {
		return false
	}
	for _, key := range keys {
		mac := hmac.New(sha256.New, key)
		mac.Write(canonical)
		if hmac.Equal(signature, mac.Sum(nil)) {
			return true
		}
	}
	return false
}
