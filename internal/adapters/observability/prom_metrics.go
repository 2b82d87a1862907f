package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/AegisSense/internal/ports"
)

// Metric names.
const (
	MetricNotificationsReceived = "aegis_notifications_received_total"
	MetricNotificationsPaused   = "aegis_notifications_paused_total"
	MetricNotificationsInvalid  = "aegis_notifications_invalid_total"
	MetricRecordsDegraded       = "aegis_records_degraded_total"
	MetricRecordsWritten        = "aegis_records_written_total"
	MetricSinkFailures          = "aegis_sink_failures_total"
	MetricDiscoveryMisses       = "aegis_discovery_misses_total"
	MetricConnectAttempts       = "aegis_connect_attempts_total"
	MetricConnectFailures       = "aegis_connect_failures_total"
	MetricSubscribeFailures     = "aegis_subscribe_failures_total"
	MetricConnectionsLost       = "aegis_connections_lost_total"
	MetricRecordsIngested       = "aegis_records_ingested_total"
	MetricQueueOverflows        = "aegis_queue_overflows_total"

	MetricSupervisorState = "aegis_supervisor_state"
	MetricSubscriptions   = "aegis_active_subscriptions"
	MetricAcquisition     = "aegis_acquisition_running"
	MetricWALSize         = "aegis_wal_size_bytes"
	MetricQueueLength     = "aegis_queue_length"

	MetricSinkLatency   = "aegis_sink_append_latency_seconds"
	MetricIngestLatency = "aegis_ingest_batch_latency_seconds"
)

type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers every metric on reg. A nil reg falls back to the
// default registerer; a nil logger discards log output.
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &PromObs{
		log:      logger,
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
		histos:   make(map[string]prometheus.Observer),
	}

	counter := func(name, help string) {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		p.counters[name] = c
	}
	gauge := func(name, help string) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		reg.MustRegister(g)
		p.gauges[name] = g
	}
	histogram := func(name, help string) {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		})
		reg.MustRegister(h)
		p.histos[name] = h
	}

	counter(MetricNotificationsReceived, "Notifications delivered by the peripheral.")
	counter(MetricNotificationsPaused, "Notifications discarded while acquisition was paused.")
	counter(MetricNotificationsInvalid, "Notifications discarded because the payload was not valid text.")
	counter(MetricRecordsDegraded, "Records with at least one field that failed to parse.")
	counter(MetricRecordsWritten, "Records appended to the telemetry sink.")
	counter(MetricSinkFailures, "Records dropped because the sink append failed.")
	counter(MetricDiscoveryMisses, "Scans that did not find the target peripheral.")
	counter(MetricConnectAttempts, "Connection attempts.")
	counter(MetricConnectFailures, "Connection attempts that failed.")
	counter(MetricSubscribeFailures, "Sessions ended by a subscribe failure.")
	counter(MetricConnectionsLost, "Sessions ended by the peripheral dropping the link.")
	counter(MetricRecordsIngested, "Records written from the WAL to the downstream store.")
	counter(MetricQueueOverflows, "Times the queue filled and records were left in the WAL for refill.")

	gauge(MetricSupervisorState, "Connection supervisor state (0 discovering, 1 connecting, 2 streaming, 3 reconnect-wait).")
	gauge(MetricSubscriptions, "Notification sources currently subscribed.")
	gauge(MetricAcquisition, "1 while acquisition is running, 0 while paused.")
	gauge(MetricWALSize, "Size of WAL on disk.")
	gauge(MetricQueueLength, "Records buffered between the WAL and the downstream store.")

	histogram(MetricSinkLatency, "Latency of a single telemetry sink append.")
	histogram(MetricIngestLatency, "Latency of a downstream batch write.")

	return p
}

// Logger exposes the underlying structured logger.
func (p *PromObs) Logger() *slog.Logger { return p.log }

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.log.Debug(msg, attrs(nil, fields)...)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, attrs(nil, fields)...)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	p.log.Warn(msg, attrs(err, fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, attrs(err, fields)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(attrs(err, fields), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(err error, fields []ports.Field) []any {
	out := make([]any, 0, len(fields)+1)
	if err != nil {
		out = append(out, slog.Any("error", err))
	}
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
