// Package supervisor keeps a single peripheral session alive: it resolves the
// peripheral's address once, then loops connect, stream and back off for the
// life of the process.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
	"github.com/ghalamif/AegisSense/internal/session"
)

type State int

const (
	Discovering State = iota
	Connecting
	Streaming
	ReconnectWait
)

func (s State) String() string {
	switch s {
	case Discovering:
		return "discovering"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case ReconnectWait:
		return "reconnect-wait"
	default:
		return "unknown"
	}
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithSessionIDs replaces the uuid generator used to tag sessions.
func WithSessionIDs(next func() string) Option {
	return func(s *Supervisor) {
		if next != nil {
			s.newSessionID = next
		}
	}
}

// WithTransitionHook is called after every state change.
func WithTransitionHook(fn func(State)) Option {
	return func(s *Supervisor) {
		s.onTransition = fn
	}
}

type Supervisor struct {
	cfg       Config
	transport ports.Transport
	identity  *domain.PeripheralIdentity
	router    *Router
	state     *session.State
	obs       ports.Observability

	newSessionID func() string
	onTransition func(State)

	mu      sync.Mutex
	current State
}

func New(cfg Config, transport ports.Transport, identity *domain.PeripheralIdentity, router *Router, state *session.State, obs ports.Observability, opts ...Option) (*Supervisor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil || identity == nil || router == nil || state == nil || obs == nil {
		return nil, errors.New("supervisor: transport, identity, router, state and observability are required")
	}
	s := &Supervisor{
		cfg:          cfg,
		transport:    transport,
		identity:     identity,
		router:       router,
		state:        state,
		obs:          obs,
		newSessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run blocks until ctx is done. Every transport failure is logged and retried.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.identity.Resolved() {
		if !s.discover(ctx) {
			return nil
		}
	} else {
		s.obs.LogInfo("discovery_skipped",
			ports.F("name", s.identity.Name()),
			ports.F("address", s.identity.Address()))
	}

	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			s.obs.LogInfo("supervisor_stopped", ports.F("address", s.identity.Address()))
			return nil
		}
		s.obs.LogWarn("session_ended", err,
			ports.F("kind", kindName(err)),
			ports.F("address", s.identity.Address()),
			ports.F("retry_in", s.cfg.ReconnectBackoff))

		s.transition(ReconnectWait, "")
		if !sleepCtx(ctx, s.cfg.ReconnectBackoff) {
			return nil
		}
	}
}

// discover scans until a peripheral advertises the configured name. It
// returns false when ctx is done first.
func (s *Supervisor) discover(ctx context.Context) bool {
	s.transition(Discovering, "")
	name := s.identity.Name()

	for {
		ads, err := s.transport.Scan(ctx, s.cfg.ScanTimeout)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			s.obs.LogWarn("scan_failed", err, ports.F("name", name))
		}

		for _, ad := range ads {
			s.obs.LogDebug("device_seen",
				ports.F("name", ad.Name),
				ports.F("address", ad.Address),
				ports.F("rssi", ad.RSSI))
		}
		for _, ad := range ads {
			if ad.Name == name {
				s.identity.Resolve(ad.Address)
				s.obs.LogInfo("peripheral_found", ports.F("name", name), ports.F("address", ad.Address))
				return true
			}
		}

		s.obs.IncCounter(observability.MetricDiscoveryMisses, 1)
		s.obs.LogInfo("peripheral_not_found",
			ports.F("name", name),
			ports.F("error", domain.ErrDiscoveryMiss.Error()),
			ports.F("seen", len(ads)),
			ports.F("retry_in", s.cfg.DiscoveryBackoff))
		if !sleepCtx(ctx, s.cfg.DiscoveryBackoff) {
			return false
		}
	}
}

// session runs one connect and stream cycle against the resolved address.
func (s *Supervisor) session(ctx context.Context) error {
	id := s.newSessionID()
	addr := s.identity.Address()
	s.transition(Connecting, id)
	s.obs.IncCounter(observability.MetricConnectAttempts, 1)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	link, err := s.transport.Connect(cctx, addr)
	cancel()
	if err != nil {
		s.obs.IncCounter(observability.MetricConnectFailures, 1)
		return domain.Wrap(domain.ErrConnect, "connect "+addr, err)
	}
	s.obs.LogInfo("connected", ports.F("address", addr), ports.F("session_id", id))

	defer func() {
		if err := link.Close(); err != nil {
			s.obs.LogDebug("link_close_failed", ports.F("error", err.Error()))
		}
	}()
	return s.stream(ctx, link, id)
}

func (s *Supervisor) stream(ctx context.Context, link ports.Link, id string) error {
	sctx, cancel := context.WithCancel(ctx)
	s.transition(Streaming, id)

	chars, err := link.Characteristics(sctx)
	if err != nil {
		cancel()
		s.obs.IncCounter(observability.MetricSubscribeFailures, 1)
		return domain.Wrap(domain.ErrSubscribe, "discover characteristics", err)
	}
	for _, c := range chars {
		s.obs.LogDebug("characteristic",
			ports.F("service", c.Service),
			ports.F("uuid", c.UUID),
			ports.F("properties", c.Properties))
		if c.Notify && s.identity.AddSource(c.UUID) {
			s.obs.LogInfo("notification_source_added", ports.F("uuid", c.UUID))
		}
	}

	notes := make(chan domain.Notification, s.cfg.NotifyBuffer)
	handler := func(source string, data []byte) {
		n := domain.Notification{
			Source:     source,
			Data:       append([]byte(nil), data...),
			ReceivedAt: time.Now(),
		}
		select {
		case notes <- n:
		case <-sctx.Done():
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-sctx.Done():
				return
			case n := <-notes:
				_ = s.router.Handle(sctx, n)
			}
		}
	}()

	var subscribed []string
	defer func() {
		s.unsubscribeAll(ctx, link, subscribed)
		cancel()
		wg.Wait()
		s.obs.SetGauge(observability.MetricSubscriptions, 0)
	}()

	for _, src := range s.identity.Sources() {
		if err := link.Subscribe(sctx, src, handler); err != nil {
			s.obs.IncCounter(observability.MetricSubscribeFailures, 1)
			return domain.Wrap(domain.ErrSubscribe, "subscribe "+src, err)
		}
		subscribed = append(subscribed, src)
	}
	s.obs.SetGauge(observability.MetricSubscriptions, float64(len(subscribed)))
	s.obs.LogInfo("listening",
		ports.F("sources", len(subscribed)),
		ports.F("max_listen", s.cfg.MaxListen),
		ports.F("session_id", id))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-link.Disconnected():
		s.obs.IncCounter(observability.MetricConnectionsLost, 1)
		return domain.Wrap(domain.ErrConnectionLost, "stream "+s.identity.Address(), nil)
	}
}

// unsubscribeAll is best effort; the link is discarded afterwards anyway.
func (s *Supervisor) unsubscribeAll(ctx context.Context, link ports.Link, sources []string) {
	if len(sources) == 0 {
		return
	}
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ConnectTimeout)
	defer cancel()
	for _, src := range sources {
		if err := link.Unsubscribe(uctx, src); err != nil {
			s.obs.LogDebug("unsubscribe_failed", ports.F("uuid", src), ports.F("error", err.Error()))
		}
	}
}

func (s *Supervisor) transition(to State, sessionID string) {
	s.mu.Lock()
	from := s.current
	s.current = to
	s.mu.Unlock()

	s.state.SetLink(to.String(), s.identity.Address(), sessionID)
	s.obs.SetGauge(observability.MetricSupervisorState, float64(to))
	s.obs.LogDebug("state_changed", ports.F("from", from.String()), ports.F("to", to.String()))
	if s.onTransition != nil {
		s.onTransition(to)
	}
}

func kindName(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrConnect:
		return "connect_failure"
	case domain.ErrSubscribe:
		return "subscription_failure"
	case domain.ErrConnectionLost:
		return "connection_lost"
	default:
		return "transport"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
