package store

import (
	"encoding/hex"
	"testing"

	"antroute/internal/model"
)

func TestDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"run.completed"}`)
	if got := dedupKey(body); got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestDedupKeyFromHash(t *testing.T) {
	got := dedupKey([]byte(`{"notId":"x"}`))
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestRunJSONLeavesEmptyColumnsNull(t *testing.T) {
	params, routes, host, err := runJSON(model.Run{ID: "r1"})
	if err != nil {
		t.Fatalf("runJSON: %v", err)
	}
	if len(params) == 0 {
		t.Fatalf("params must always be encoded")
	}
	if routes != nil || host != nil {
		t.Fatalf("nil routes/host should map to NULL, got %s %s", routes, host)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty("  "); v != nil {
		t.Fatalf("blank -> nil expected")
	}
	if v := nullIfEmpty("a"); v != "a" {
		t.Fatalf("want a, got %v", v)
	}
}
