package httptransport

import "encoding/json"

type IssueCommandRequest struct {
	FamilyID    string          `json:"family_id"`
	DeviceID    string          `json:"device_id"`
	CommandType string          `json:"command_type"`
	Payload     json.RawMessage `json:"payload"`
	IncidentID  string          `json:"incident_id,omitempty"`
	TTLSeconds  int             `json:"ttl_seconds,omitempty"`
}

type EnvelopeDTO struct {
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

type IssueCommandResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		CommandID string      `json:"command_id"`
		State     string      `json:"state"`
		Envelope  EnvelopeDTO `json:"envelope"`
		Signature string      `json:"signature_hmac"`
		ExpiresAt string      `json:"expires_at"`
	} `json:"data"`
}

type ReportStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type CommandStatusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		CommandID  string `json:"command_id"`
		DeviceID   string `json:"device_id"`
		State      string `json:"state"`
		RetryCount int    `json:"retry_count"`
		IssuedAt   string `json:"issued_at"`
		ExpiresAt  string `json:"expires_at"`
		UpdatedAt  string `json:"updated_at"`
	} `json:"data"`
}
