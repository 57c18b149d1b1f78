package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"antroute/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that progress
// published by one replica reaches subscribers connected to another.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan model.ProgressEvent]*redis.PubSub

	out       chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

type outbound struct {
	runID string
	evt   model.ProgressEvent
}

// publishQueue bounds the events waiting for the Redis round trip; Publish
// drops beyond it.
const publishQueue = 256

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return newRedisBroker(rdb), nil
}

func newRedisBroker(rdb *redis.Client) *RedisBroker {
	b := &RedisBroker{
		rdb:  rdb,
		subs: map[chan model.ProgressEvent]*redis.PubSub{},
		out:  make(chan outbound, publishQueue),
		done: make(chan struct{}),
	}
	go b.drain()
	return b
}

func (b *RedisBroker) drain() {
	for {
		select {
		case <-b.done:
			return
		case m := <-b.out:
			b.send(m.runID, m.evt)
		}
	}
}

func (b *RedisBroker) Subscribe(runID string) chan model.ProgressEvent {
	ch := make(chan model.ProgressEvent, 32)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, chanName(runID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		log.Printf("redis subscribe run=%s: %v", runID, err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; the forwarding goroutine then
// closes ch.
func (b *RedisBroker) Unsubscribe(runID string, ch chan model.ProgressEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Publish enqueues evt for the background publisher and never blocks the
// caller; events are dropped while the queue is full.
func (b *RedisBroker) Publish(runID string, evt model.ProgressEvent) {
	select {
	case <-b.done:
	case b.out <- outbound{runID: runID, evt: evt}:
	default:
	}
}

func (b *RedisBroker) send(runID string, evt model.ProgressEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, chanName(runID), data).Err(); err != nil {
		log.Printf("redis publish run=%s: %v", runID, err)
	}
}

func (b *RedisBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return b.rdb.Close()
}

func chanName(runID string) string { return "run:" + runID }
