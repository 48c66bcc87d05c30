package entities

import "time"

// EvidenceRecord indexes one captured artifact. The payload itself
// lives in the blob store under BlobRef.
type EvidenceRecord struct {
	EvidenceID  string
	FamilyID    string
	DeviceID    string
	IncidentID  string
	ContentType string
	BlobRef     string
	CapturedAt  time.Time
}

// ExportFilters bound which evidence lands in a package.
type ExportFilters struct {
	From        time.Time
	To          time.Time
	DeviceID    string
	IncidentID  string
	ContentType string
}

func (f ExportFilters) Matches(record EvidenceRecord) bool {
	if record.CapturedAt.Before(f.From) || record.CapturedAt.After(f.To) {
		return false
	}
	if f.DeviceID != "" && record.DeviceID != f.DeviceID {
		return false
	}
	if f.IncidentID != "" && record.IncidentID != f.IncidentID {
		return false
	}
	if f.ContentType != "" && record.ContentType != f.ContentType {
		return false
	}
	return true
}
