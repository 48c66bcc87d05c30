package services

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"warden/contexts/device-control/command-service/domain/entities"
)

func sampleCommand() entities.DeviceCommand {
	issued := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	return entities.DeviceCommand{
		CommandID:   "cmd_1",
		FamilyID:    "fam_1",
		DeviceID:    "dev_1",
		CommandType: "DEVICE_LOCK",
		PayloadJSON: json.RawMessage(`{"reason":"manual"}`),
		Nonce:       "0102030405060708090a0b0c0d0e0f10",
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(2 * time.Minute),
	}
}

func TestCanonicalBytesAreStable(t *testing.T) {
	env := BuildEnvelope(sampleCommand())
	first, err := CanonicalBytes(env)
	if err != nil {
		t.Fatalf("canonical bytes failed: %v", err)
	}
	second, err := CanonicalBytes(env)
	if err != nil {
		t.Fatalf("canonical bytes failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("canonical form must be byte stable:\n%s\n%s", first, second)
	}
	if !bytes.HasPrefix(first, []byte(`{"command_id"`)) {
		t.Fatalf("canonical form must start with the alphabetically first key, got %s", first)
	}
}

func TestSignAndVerifyMultiKey(t *testing.T) {
	env := BuildEnvelope(sampleCommand())
	active := []byte("active-shared-secret-0123456789ab")
	pending := []byte("pending-shared-secret-0123456789")

	signature, err := Sign(env, active)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !VerifySignature(env, signature, [][]byte{active}) {
		t.Fatalf("signature must verify under the signing key")
	}
	if !VerifySignature(env, signature, [][]byte{pending, active}) {
		t.Fatalf("signature must verify when the signing key is not first")
	}
	if VerifySignature(env, signature, [][]byte{pending}) {
		t.Fatalf("signature must not verify under a different key")
	}
	if VerifySignature(env, "zz-not-hex", [][]byte{active}) {
		t.Fatalf("malformed signature must not verify")
	}
}

func TestTamperedEnvelopeFailsVerification(t *testing.T) {
	env := BuildEnvelope(sampleCommand())
	key := []byte("active-shared-secret-0123456789ab")
	signature, err := Sign(env, key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	cases := []Envelope{env, env, env, env}
	cases[0].CommandType = "DEVICE_UNLOCK"
	cases[1].Nonce = "ffffffffffffffffffffffffffffffff"
	cases[2].ExpiresAt = "2030-01-01T00:00:00Z"
	cases[3].Payload = json.RawMessage(`{"reason":"swapped"}`)
	for i, tampered := range cases {
		if VerifySignature(tampered, signature, [][]byte{key}) {
			t.Fatalf("case %d: tampered envelope must fail verification", i)
		}
	}
}
