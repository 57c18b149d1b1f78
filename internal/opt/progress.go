package opt

import (
	"context"
	"sync"
	"time"
)

// Progress is the per-iteration record handed to an observer.
type Progress struct {
	Iteration  int
	Elapsed    time.Duration
	BestCost   float64
	BestRoutes int
}

// ProgressObserver receives one record per iteration. RecordIteration is called
// on the solving goroutine and must not block.
type ProgressObserver interface {
	RecordIteration(Progress)
	Flush(ctx context.Context, runID string) error
}

// ProgressSink persists a batch of records under a run id.
type ProgressSink func(ctx context.Context, runID string, records []Progress) error

// ProgressLog buffers records in memory. Flush hands them to Sink when set.
// OnRecord, when set, sees each record as it arrives (live fan-out).
type ProgressLog struct {
	Sink     ProgressSink
	OnRecord func(Progress)

	mu      sync.Mutex
	records []Progress
}

func (l *ProgressLog) RecordIteration(p Progress) {
	l.mu.Lock()
	l.records = append(l.records, p)
	l.mu.Unlock()
	if l.OnRecord != nil {
		l.OnRecord(p)
	}
}

// Records returns a copy of everything recorded so far.
func (l *ProgressLog) Records() []Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.records...)
}

func (l *ProgressLog) Flush(ctx context.Context, runID string) error {
	if l.Sink == nil {
		return nil
	}
	return l.Sink(ctx, runID, l.Records())
}
