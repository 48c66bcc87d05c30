package httptransport

import "encoding/json"

type EventItem struct {
	EventID     string          `json:"event_id"`
	FamilyID    string          `json:"family_id"`
	DeviceID    string          `json:"device_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Actor       string          `json:"actor"`
	EventKey    string          `json:"event_key"`
	EventAt     string          `json:"event_at"`
	EventJSON   json.RawMessage `json:"event_json"`
	PrevHashHex *string         `json:"prev_hash_hex"`
	HashHex     string          `json:"hash_hex"`
	ChainSeq    int64           `json:"chain_seq"`
}

type EventsResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Events []EventItem `json:"events"`
	} `json:"data"`
}

type ChainVerificationResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		FamilyID      string `json:"family_id"`
		EventCount    int    `json:"event_count"`
		Valid         bool   `json:"valid"`
		BrokenEventID string `json:"broken_event_id,omitempty"`
		BrokenSeq     int64  `json:"broken_seq,omitempty"`
		Reason        string `json:"reason,omitempty"`
	} `json:"data"`
}
