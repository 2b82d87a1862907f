package aegissense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ghalamif/AegisSense/internal/adapters/ble"
	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/adapters/queue"
	"github.com/ghalamif/AegisSense/internal/adapters/sink"
	"github.com/ghalamif/AegisSense/internal/adapters/wal"
	"github.com/ghalamif/AegisSense/internal/app/pipeline"
	"github.com/ghalamif/AegisSense/internal/app/supervisor"
	"github.com/ghalamif/AegisSense/internal/decoder"
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
	"github.com/ghalamif/AegisSense/internal/session"
	"github.com/ghalamif/AegisSense/internal/status"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	transport     Transport
	sinks         []Sink
	observability Observability
	logger        *slog.Logger
	state         *SessionState
	noHTTP        bool
}

// WithTransport injects a custom transport (simulators, replays, other radios).
func WithTransport(t Transport) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transport = t
	}
}

// WithSink replaces the configured sinks. Repeated calls fan out to every sink given.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithObservability plugs in a custom observability backend. The status
// server then serves an empty metrics registry.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger overrides the logger built from the log section of the config.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithState shares an existing session state, e.g. with an embedded UI.
func WithState(s *SessionState) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.state = s
	}
}

// WithoutStatusServer skips the HTTP status server.
func WithoutStatusServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noHTTP = true
	}
}

// Runtime wires transport → supervisor → decoder → sinks and the status
// surface, and exposes simple lifecycle hooks for embedding AegisSense inside
// any Go service.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	logger    *slog.Logger
	logCloser io.Closer
	closers   []io.Closer
	registry  *prometheus.Registry

	state      *session.State
	identity   *domain.PeripheralIdentity
	transport  ports.Transport
	sink       ports.Sink
	buffered   *pipeline.BufferedSink
	db         *sql.DB
	supervisor *supervisor.Supervisor
	status     *status.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRuntime bootstraps the default adapters (BLE transport, CSV/SQLite/SQL
// sinks, Prometheus observability, status server). Callers can use
// RuntimeOption values to override any dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt = &Runtime{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = rt.closeResources()
		}
	}()

	rt.logger = overrides.logger
	if rt.logger == nil {
		logger, closer, err := observability.NewLogger(cfg.Log, os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		rt.logger = logger
		rt.logCloser = closer
	}

	rt.obs = overrides.observability
	if rt.obs == nil {
		rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.obs = observability.NewPromObs(rt.registry, rt.logger)
	}

	rt.state = overrides.state
	if rt.state == nil {
		rt.state = session.New(cfg.Acquisition.Paused())
	}

	rt.identity = domain.NewPeripheralIdentity(cfg.Peripheral.Name, cfg.Peripheral.Address, cfg.Peripheral.Sources)
	if cfg.Peripheral.SkipDiscovery {
		rt.identity.Resolve(cfg.Peripheral.Address)
	}

	sinks := overrides.sinks
	if len(sinks) == 0 {
		if sinks, err = rt.buildSinks(); err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
	}
	rt.sink = sink.NewMulti(sinks...)
	rt.closers = append(rt.closers, rt.sink)

	rt.transport = overrides.transport
	if rt.transport == nil {
		bt, err := ble.Open(cfg.Peripheral.HCIDevice)
		if err != nil {
			return nil, err
		}
		rt.transport = bt
		rt.closers = append(rt.closers, bt)
	}

	router := supervisor.NewRouter(decoder.New(), rt.state, rt.sink, rt.obs)
	rt.supervisor, err = supervisor.New(cfg.Supervisor, rt.transport, rt.identity, router, rt.state, rt.obs)
	if err != nil {
		return nil, err
	}

	if !overrides.noHTTP {
		rt.status = status.NewServer(cfg.HTTP.Addr, rt.state, rt.registry, rt.obs)
	}
	return rt, nil
}

func (r *Runtime) buildSinks() ([]ports.Sink, error) {
	cfg := r.cfg.Sink
	var out []ports.Sink

	if cfg.CSV.On() {
		csvSink, err := sink.NewCSVSink(cfg.CSV.Dir, cfg.CSV.FileName)
		if err != nil {
			return out, fmt.Errorf("csv sink: %w", err)
		}
		r.obs.LogInfo("csv_sink_ready", ports.F("path", csvSink.Path()))
		out = append(out, csvSink)
	}

	if cfg.SQLite.Path != "" {
		lite, err := sink.NewSQLiteSink(cfg.SQLite.Path)
		if err != nil {
			return out, fmt.Errorf("sqlite sink: %w", err)
		}
		r.obs.LogInfo("sqlite_sink_ready", ports.F("path", cfg.SQLite.Path))
		out = append(out, lite)
	}

	if cfg.SQL.On() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := sink.OpenSQL(ctx, cfg.SQL.Driver, cfg.SQL.ConnString)
		if err != nil {
			return out, fmt.Errorf("sql sink: %w", err)
		}
		r.db = db
		sqlSink, err := sink.NewSQLSink(db, cfg.SQL.Table)
		if err != nil {
			return out, err
		}
		if err := sqlSink.EnsureSchema(ctx); err != nil {
			return out, fmt.Errorf("sql schema: %w", err)
		}

		w, err := wal.NewFileWAL(r.cfg.WAL.Dir)
		if err != nil {
			return out, fmt.Errorf("wal: %w", err)
		}
		buffered, err := pipeline.NewBufferedSink(w, queue.NewMemQueue(r.cfg.Policy.MaxQueueLen), sqlSink, r.cfg.Policy, r.obs)
		if err != nil {
			_ = w.Close()
			return out, err
		}
		r.buffered = buffered
		r.obs.LogInfo("sql_sink_ready", ports.F("driver", cfg.SQL.Driver), ports.F("table", cfg.SQL.Table))
		out = append(out, buffered)
	}
	return out, nil
}

// State exposes the live session state.
func (r *Runtime) State() *SessionState { return r.state }

// Logger returns the runtime's structured logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

// StatusAddr is the bound status address, or "" without a status server.
func (r *Runtime) StatusAddr() string {
	if r.status == nil {
		return ""
	}
	return r.status.Addr()
}

// Start launches the supervisor, the SQL ingest loop and the status server.
// It returns immediately; call Run to block on a context instead.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if r.status != nil {
		if err := r.status.Start(); err != nil {
			return err
		}
	}

	ctx, r.cancel = context.WithCancel(ctx)
	if r.buffered != nil {
		r.wg.Add(2)
		go func() {
			defer r.wg.Done()
			r.buffered.Run(ctx)
		}()
		go func() {
			defer r.wg.Done()
			r.buffered.RecordGauges(ctx, time.Second)
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.supervisor.Run(ctx)
	}()

	r.obs.LogInfo("runtime_started",
		ports.F("peripheral", r.identity.Name()),
		ports.F("address", r.identity.Address()),
		ports.F("sink", r.sink.Name()),
		ports.F("paused", r.state.Paused()))
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return errors.Join(err, r.closeResources())
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the supervisor, which unsubscribes and closes the link, then
// the status server, sinks, database and transport.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for supervisor: %w", ctx.Err()))
	}

	if r.status != nil {
		if err := r.status.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	r.obs.LogInfo("runtime_stopped", ports.F("messages", r.state.Snapshot().Messages))
	errs = append(errs, r.closeResources())
	return errors.Join(errs...)
}

// closeResources releases sinks, the database and the transport. The log
// file goes last so earlier failures are still written.
func (r *Runtime) closeResources() error {
	var errs []error
	closers := r.closers
	r.closers = nil

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}
	if r.logCloser != nil {
		if err := r.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
		r.logCloser = nil
	}
	return errors.Join(errs...)
}
