package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

type fakeTransport struct {
	mu           sync.Mutex
	scans        [][]ports.Advertisement
	scanCalls    int
	connectErrs  []error
	connectAddrs []string
	connectTimes []time.Time
	links        []*fakeLink
	chars        []ports.Characteristic
	subscribeErr error
}

func (f *fakeTransport) Scan(ctx context.Context, _ time.Duration) ([]ports.Advertisement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scans) == 0 {
		return nil, nil
	}
	idx := f.scanCalls
	if idx >= len(f.scans) {
		idx = len(f.scans) - 1
	}
	f.scanCalls++
	return f.scans[idx], ctx.Err()
}

func (f *fakeTransport) Connect(_ context.Context, address string) (ports.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.connectAddrs)
	f.connectAddrs = append(f.connectAddrs, address)
	f.connectTimes = append(f.connectTimes, time.Now())
	if call < len(f.connectErrs) && f.connectErrs[call] != nil {
		return nil, f.connectErrs[call]
	}
	l := &fakeLink{
		chars:        f.chars,
		subscribeErr: f.subscribeErr,
		handlers:     map[string]ports.NotificationHandler{},
		disconnected: make(chan struct{}),
	}
	f.links = append(f.links, l)
	return l, nil
}

func (f *fakeTransport) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanCalls
}

func (f *fakeTransport) addresses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connectAddrs...)
}

func (f *fakeTransport) dialTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.connectTimes...)
}

func (f *fakeTransport) link(i int) *fakeLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.links) {
		return nil
	}
	return f.links[i]
}

type fakeLink struct {
	mu           sync.Mutex
	chars        []ports.Characteristic
	subscribeErr error
	handlers     map[string]ports.NotificationHandler
	unsubscribed []string
	closed       bool
	disconnected chan struct{}
	dropOnce     sync.Once
}

func (l *fakeLink) Characteristics(context.Context) ([]ports.Characteristic, error) {
	return l.chars, nil
}

func (l *fakeLink) Subscribe(_ context.Context, source string, h ports.NotificationHandler) error {
	if l.subscribeErr != nil {
		return l.subscribeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[source] = h
	return nil
}

func (l *fakeLink) Unsubscribe(_ context.Context, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unsubscribed = append(l.unsubscribed, source)
	delete(l.handlers, source)
	return nil
}

func (l *fakeLink) Disconnected() <-chan struct{} { return l.disconnected }

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) subscriptions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) notify(source string, data []byte) {
	l.mu.Lock()
	h := l.handlers[source]
	l.mu.Unlock()
	if h != nil {
		h(source, data)
	}
}

func (l *fakeLink) drop() {
	l.dropOnce.Do(func() { close(l.disconnected) })
}

type recordingSink struct {
	mu   sync.Mutex
	err  error
	recs []domain.Record
}

func (r *recordingSink) Append(_ context.Context, rec domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recordingSink) Name() string { return "recording" }
func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) records() []domain.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Record(nil), r.recs...)
}

type logEntry struct {
	level string
	msg   string
	err   error
	attrs map[string]any
}

type mockObs struct {
	mu       sync.Mutex
	entries  []logEntry
	counters map[string]float64
}

func newMockObs() *mockObs { return &mockObs{counters: map[string]float64{}} }

func (m *mockObs) log(level, msg string, err error, fields []ports.Field) {
	attrs := make(map[string]any, len(fields))
	for _, f := range fields {
		attrs[f.Key] = f.Value
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{level: level, msg: msg, err: err, attrs: attrs})
}

func (m *mockObs) LogDebug(msg string, f ...ports.Field)            { m.log("debug", msg, nil, f) }
func (m *mockObs) LogInfo(msg string, f ...ports.Field)             { m.log("info", msg, nil, f) }
func (m *mockObs) LogWarn(msg string, err error, f ...ports.Field)  { m.log("warn", msg, err, f) }
func (m *mockObs) LogError(msg string, err error, f ...ports.Field) { m.log("error", msg, err, f) }
func (m *mockObs) LogCritical(msg string, err error, f ...ports.Field) {
	m.log("critical", msg, err, f)
}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}

func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) find(msg string) (logEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) hook(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errRefused = errors.New("connection refused")
