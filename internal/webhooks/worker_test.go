package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"antroute/internal/model"
	"antroute/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}

type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
}

type failRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func seedRun(t *testing.T, s *store.Memory, callback, secret string) model.Run {
	t.Helper()
	run, err := s.CreateRun(context.Background(), model.Run{
		ID: "run-1", Algorithm: "aco", CallbackURL: callback, CallbackSecret: secret,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.Status = model.RunCompleted
	run.Cost = 524.61
	run.RouteCount = 5
	return run
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	run := seedRun(t, rs.Memory, srv.URL, "secret")
	id, err := NewPublisher(rs).RunFinished(context.Background(), run)
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: id=%q err=%v", id, err)
	}

	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	w.processOnce()

	if gotType != EventRunCompleted {
		t.Fatalf("event type header: %q", gotType)
	}
	if !VerifyHMAC("secret", body, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	var evt model.RunCompletedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if evt.RunID != "run-1" || evt.RouteCount != 5 || evt.Status != model.RunCompleted {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if len(rs.marks) != 1 || !rs.marks[0].Success {
		t.Fatalf("expected one successful mark, got %+v", rs.marks)
	}
	ds, _ := rs.ListDeliveries(context.Background(), "run-1")
	if len(ds) != 1 || ds[0].Status != store.DeliveryDelivered {
		t.Fatalf("delivery not marked delivered: %+v", ds)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	_, err := rs.EnqueueDelivery(context.Background(), "run-1", EventRunCompleted, srv.URL, "", []byte(`{"id":"evt1"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}

	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].Code != 500 {
		t.Fatalf("expected a failed mark with code 500, got %+v", rs.marks)
	}

	// the retry is scheduled in the future; nothing is due yet
	w.processOnce()
	if len(rs.marks) != 1 || len(rs.fails) != 0 {
		t.Fatalf("retry should wait for backoff: marks=%+v fails=%+v", rs.marks, rs.fails)
	}

	w.MaxAttempts = 1
	due := &recordStore{Memory: store.NewMemory()}
	_, _ = due.EnqueueDelivery(context.Background(), "run-2", EventRunCompleted, srv.URL, "", []byte(`{}`))
	w.Store = due
	w.processOnce()
	if len(due.fails) != 1 {
		t.Fatalf("expected fail recorded, got %+v", due.fails)
	}
}

func TestPublisherSkipsWithoutCallback(t *testing.T) {
	s := store.NewMemory()
	run := seedRun(t, s, "", "")
	id, err := NewPublisher(s).RunFinished(context.Background(), run)
	if err != nil || id != "" {
		t.Fatalf("expected no delivery, got id=%q err=%v", id, err)
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second {
		t.Fatalf("first backoff should be 1s")
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("backoff(3) = %v", nextBackoff(3))
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff is capped at 2^10 seconds, got %v", nextBackoff(50))
	}
}

func TestSignAndVerify(t *testing.T) {
	sig := SignHMAC("k", []byte("payload"))
	if !VerifyHMAC("k", []byte("payload"), sig) {
		t.Fatalf("verify failed")
	}
	if VerifyHMAC("other", []byte("payload"), sig) || VerifyHMAC("k", []byte("payload"), "zz") {
		t.Fatalf("verify accepted a bad signature")
	}
}
