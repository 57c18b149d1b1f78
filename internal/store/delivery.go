package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

type Delivery struct {
	ID            string    `json:"id"`
	RunID         string    `json:"runId"`
	EventType     string    `json:"eventType"`
	URL           string    `json:"url"`
	Secret        string    `json:"-"`
	Payload       []byte    `json:"-"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"nextAttemptAt"`
	LastError     string    `json:"lastError,omitempty"`
	ResponseCode  int       `json:"responseCode,omitempty"`
	LatencyMs     int       `json:"latencyMs,omitempty"`
}

// dedupKey prefers the event id in the payload and falls back to a short hash.
func dedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
