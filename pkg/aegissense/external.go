package aegissense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/adapters/queue"
	"github.com/ghalamif/AegisSense/internal/adapters/wal"
	"github.com/ghalamif/AegisSense/internal/app/pipeline"
	"github.com/ghalamif/AegisSense/internal/decoder"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
var ErrWALFull = pipeline.ErrWALFull

// ExternalPublisherConfig configures the WAL-backed publisher used by callers.
type ExternalPublisherConfig struct {
	Policy Policy
	WAL    WALConfig
}

// applyDefaults fills in sane thresholds so callers only override what they need.
func (c *ExternalPublisherConfig) applyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/aegissense-wal"
	}
}

func (c *ExternalPublisherConfig) validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	return nil
}

// ExternalPublisher exposes the WAL-backed delivery path to producers that do
// not talk to the peripheral themselves, e.g. a serial bridge or a log replay.
// Published records are durable once Publish returns and reach the handler in
// order, surviving restarts.
type ExternalPublisher struct {
	buffered *pipeline.BufferedSink
	dec      *decoder.Decoder
	obs      ports.Observability

	cancel    context.CancelFunc
	doneCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewExternalPublisher wires a WAL + bounded queue + handler so callers can
// push records or raw payloads while reusing the durability policies.
func NewExternalPublisher(cfg *ExternalPublisherConfig, handler RecordHandler) (*ExternalPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("record handler is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	walAdapter, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	obs := observability.NewPromObs(prometheus.NewRegistry(), nil)

	buffered, err := pipeline.NewBufferedSink(walAdapter, queue.NewMemQueue(cfg.Policy.MaxQueueLen),
		NewCallbackSink("external", handler), cfg.Policy, obs)
	if err != nil {
		_ = walAdapter.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	pub := &ExternalPublisher{
		buffered: buffered,
		dec:      decoder.New(),
		obs:      obs,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}

	go func() {
		defer close(pub.doneCh)
		buffered.Run(ctx)
	}()
	return pub, nil
}

// Publish appends the record to the WAL and queues it for the handler.
func (p *ExternalPublisher) Publish(ctx context.Context, rec Record) error {
	return p.buffered.Append(ctx, rec)
}

// PublishPayload decodes a raw notification payload and publishes the result.
// Fields that fail to parse are published as not available and the decode
// error is returned with the record.
func (p *ExternalPublisher) PublishPayload(ctx context.Context, payload string) (Record, error) {
	rec, decodeErr := p.dec.Decode(payload)
	if decodeErr != nil {
		p.obs.IncCounter(observability.MetricRecordsDegraded, 1)
		p.obs.LogWarn("external_payload_degraded", decodeErr)
	}
	if err := p.Publish(ctx, rec); err != nil {
		return rec, errors.Join(err, decodeErr)
	}
	return rec, decodeErr
}

// Close stops the delivery loop and closes the WAL, respecting the provided
// context. Records not yet delivered are replayed by the next publisher on
// the same WAL directory.
func (p *ExternalPublisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.cancel()
		select {
		case <-p.doneCh:
			p.closeErr = p.buffered.Close()
		case <-ctx.Done():
			p.closeErr = ctx.Err()
		}
	})
	return p.closeErr
}
