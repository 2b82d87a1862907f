package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// ErrWALFull is returned by Append when the WAL is at capacity and the policy
// does not block.
var ErrWALFull = errors.New("wal full")

var errQueueFull = errors.New("queue full")

// BufferedSink makes a record durable in the WAL before Append returns and
// forwards it to a downstream BatchSink from a background ingest loop.
// Records reach the downstream store in WAL order. When the queue is full the
// sink switches to overflow mode: records stay only in the WAL and the ingest
// loop refills the queue from the WAL as it drains.
type BufferedSink struct {
	wal ports.WAL
	q   ports.RecordQueue
	out ports.BatchSink
	pol ports.Policy
	obs ports.Observability

	mu         sync.Mutex
	lastQueued ports.WALEntryID
	overflow   bool
}

// NewBufferedSink queues every entry appended but not yet committed by a
// previous run.
func NewBufferedSink(wal ports.WAL, q ports.RecordQueue, out ports.BatchSink, pol ports.Policy, obs ports.Observability) (*BufferedSink, error) {
	if wal == nil || q == nil || out == nil || obs == nil {
		return nil, fmt.Errorf("buffered sink: wal, queue, downstream and observability are required")
	}
	b := &BufferedSink{wal: wal, q: q, out: out, pol: pol, obs: obs}

	stats := wal.Stats()
	if stats.OldestUncommitted > 0 {
		b.lastQueued = stats.OldestUncommitted - 1
	}
	if stats.LatestAppended > b.lastQueued {
		b.overflow = true
		if err := b.refill(); err != nil {
			return nil, fmt.Errorf("buffered sink: replay: %w", err)
		}
		b.obs.LogInfo("wal_replay_started",
			ports.F("from_id", b.lastQueued),
			ports.F("latest_id", stats.LatestAppended),
			ports.F("queued", q.Len()))
	}
	return b, nil
}

func (b *BufferedSink) Name() string { return "wal+" + b.out.Name() }

// Append waits for WAL capacity without holding the sink lock, so the ingest
// loop keeps draining and compacting the WAL meanwhile. Under the block policy
// it returns ctx.Err() once ctx is done.
func (b *BufferedSink) Append(ctx context.Context, rec domain.Record) error {
	if err := waitForWALCapacity(ctx, b.wal, b.pol, b.obs); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.wal.Append(rec)
	if err != nil {
		b.obs.LogCritical("wal_append_failed", err)
		return err
	}
	if b.overflow {
		return nil
	}
	if !b.q.Enqueue(id, rec) {
		b.overflow = true
		b.obs.IncCounter(observability.MetricQueueOverflows, 1)
		b.obs.LogWarn("queue_overflow", errQueueFull, ports.F("wal_id", id))
		return nil
	}
	b.lastQueued = id
	return nil
}

// refill moves WAL entries after lastQueued into the queue until it is full
// or the WAL is exhausted.
func (b *BufferedSink) refill() error {
	if !b.overflow {
		return nil
	}
	full := false
	err := b.wal.Iterate(b.lastQueued+1, func(id ports.WALEntryID, rec domain.Record) error {
		if !b.q.Enqueue(id, rec) {
			full = true
			return errQueueFull
		}
		b.lastQueued = id
		return nil
	})
	if err != nil && !errors.Is(err, errQueueFull) {
		return err
	}
	if !full {
		b.overflow = false
	}
	return nil
}

// Run drains the queue into the downstream store until ctx is done. A failed
// batch is retried; nothing is committed in the WAL until it is written.
func (b *BufferedSink) Run(ctx context.Context) {
	idle := idleSleep(b.pol)
	var pending []ports.QueuedRecord

	for {
		if ctx.Err() != nil {
			return
		}
		if len(pending) == 0 {
			pending = b.q.DequeueBatch(b.pol.MaxBatchSize)
		}
		if len(pending) == 0 {
			b.mu.Lock()
			err := b.refill()
			b.mu.Unlock()
			if err != nil {
				b.obs.LogError("wal_refill_failed", err)
			}
			pending = b.q.DequeueBatch(b.pol.MaxBatchSize)
		}
		if len(pending) == 0 {
			sleepCtx(ctx, idle)
			continue
		}

		recs := make([]domain.Record, len(pending))
		var maxID ports.WALEntryID
		for i, item := range pending {
			recs[i] = item.Record
			if item.ID > maxID {
				maxID = item.ID
			}
		}

		start := time.Now()
		if err := b.out.WriteBatch(ctx, recs); err != nil {
			b.obs.LogError("downstream_write_failed", err,
				ports.F("sink", b.out.Name()), ports.F("records", len(recs)))
			sleepCtx(ctx, idle)
			continue
		}
		b.obs.ObserveLatency(observability.MetricIngestLatency, time.Since(start).Seconds())
		b.obs.IncCounter(observability.MetricRecordsIngested, float64(len(recs)))
		pending = nil

		if err := b.wal.Commit(maxID); err != nil {
			b.obs.LogError("wal_commit_failed", err)
		}
	}
}

// RecordGauges publishes WAL size and queue depth every interval.
func (b *BufferedSink) RecordGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.obs.SetGauge(observability.MetricWALSize, float64(b.wal.Stats().SizeBytes))
			b.obs.SetGauge(observability.MetricQueueLength, float64(b.q.Len()))
		}
	}
}

func (b *BufferedSink) Close() error { return b.wal.Close() }

func waitForWALCapacity(ctx context.Context, wal ports.WAL, pol ports.Policy, obs ports.Observability) error {
	if pol.MaxWALSizeBytes <= 0 {
		return nil
	}
	sleep := idleSleep(pol)

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return nil
		}

		switch pol.OnWALFull {
		case "block":
			sleepCtx(ctx, sleep)
			if err := ctx.Err(); err != nil {
				obs.LogWarn("wal_full_wait_cancelled", err, ports.F("size", stats.SizeBytes))
				return err
			}
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return ErrWALFull
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return ErrWALFull
		}
	}
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ ports.Sink = (*BufferedSink)(nil)
