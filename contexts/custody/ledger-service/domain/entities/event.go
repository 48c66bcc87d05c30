package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// CustodyEvent is an immutable fact in the per-family hash chain.
// ChainSeq is a storage ordering key (0-based) and is not part of the
// hash; linkage is proven through PrevHashHex alone.
type CustodyEvent struct {
	EventID     string
	FamilyID    string
	DeviceID    string
	UserID      string
	Actor       string
	EventKey    string
	EventAt     time.Time
	EventJSON   json.RawMessage
	PrevHashHex *string
	HashHex     string
	ChainSeq    int64
}

// ComputeHash derives the chain hash of an event. The canonical form is
// a JSON object with alphabetically sorted keys; marshalling a
// map[string]any pins that byte layout because encoding/json sorts map
// keys. EventAt is rendered as RFC3339Nano in UTC and PrevHashHex is
// null for the first event of a chain.
func ComputeHash(
	familyID string,
	actor string,
	eventKey string,
	eventAt time.Time,
	prevHashHex *string,
	eventJSON json.RawMessage,
) (string, error) {
	canonical := map[string]any{
		"actor":         actor,
		"event_at":      eventAt.UTC().Format(time.RFC3339Nano),
		"event_json":    eventJSON,
		"event_key":     eventKey,
		"family_id":     familyID,
		"prev_hash_hex": prevHashHex,
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Recompute returns the hash the event should carry given its stored fields.
func (e CustodyEvent) Recompute() (string, error) {
	return ComputeHash(e.FamilyID, e.Actor, e.EventKey, e.EventAt, e.PrevHashHex, e.EventJSON)
}
