package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"warden/contexts/custody/evidence-export-service/domain/entities"
)

// CanonicalFilters renders the filters as the sorted-key map that goes
// into the package hash and the manifest. Empty optional filters are
// omitted so two requests with the same effective bounds hash the same.
func CanonicalFilters(filters entities.ExportFilters) map[string]any {
	out := map[string]any{
		"from": filters.From.UTC().Format(time.RFC3339Nano),
		"to":   filters.To.UTC().Format(time.RFC3339Nano),
	}
	if filters.DeviceID != "" {
		out["device_id"] = filters.DeviceID
	}
	if filters.IncidentID != "" {
		out["incident_id"] = filters.IncidentID
	}
	if filters.ContentType != "" {
		out["content_type"] = filters.ContentType
	}
	return out
}

// PackageHash computes the SHA-256 of the canonical JSON of the
// package identity fields. Map keys marshal in sorted order, which is
// the canonical form everywhere in this system.
func PackageHash(jobID string, requester string, evidenceCount int, filters entities.ExportFilters) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"evidence_count": evidenceCount,
		"filters":        CanonicalFilters(filters),
		"job_id":         jobID,
		"requester":      requester,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// SignManifest computes the hex HMAC-SHA256 of the manifest JSON with
// the signature field cleared.
func SignManifest(manifest entities.EvidencePackageManifest, secret []byte) (string, error) {
	manifest.SignatureHex = ""
	payload, err := json.Marshal(manifest)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func VerifyManifest(manifest entities.EvidencePackageManifest, secret []byte) (bool, error) {
	signature, err := hex.DecodeString(manifest.SignatureHex)
	if err != nil {
		return false, err
	}
	expected, err := SignManifest(manifest, secret)
	if err != nil {
		return false, err
	}
	expectedRaw, err := hex.DecodeString(expected)
	if err != nil {
		return false, err
	}
	return hmac.Equal(signature, expectedRaw), nil
}
