package entities

import "time"

// ManifestItem records one evidence artifact in a package. When the
// source blob is missing the item carries an Error instead of a hash,
// so the gap is visible rather than silently dropped.
type ManifestItem struct {
	EvidenceID  string `json:"evidence_id"`
	ContentType string `json:"content_type"`
	SHA256Hex   string `json:"sha256_hex,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EvidencePackageManifest is immutable once written. Corrections are
// later chained custody events, never a rewrite of the package.
type EvidencePackageManifest struct {
	JobID          string         `json:"job_id"`
	FamilyID       string         `json:"family_id"`
	Requester      string         `json:"requester"`
	GeneratedAt    time.Time      `json:"generated_at"`
	FiltersJSON    map[string]any `json:"filters"`
	PackageHashHex string         `json:"package_hash_hex"`
	EvidenceCount  int            `json:"evidence_count"`
	Items          []ManifestItem `json:"items"`
	SignatureHex   string         `json:"signature_hex,omitempty"`
}
