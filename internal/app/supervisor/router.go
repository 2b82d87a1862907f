package supervisor

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/decoder"
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
	"github.com/ghalamif/AegisSense/internal/session"
)

// Router turns one notification into a state update and a sink append.
// Handle is called from a single goroutine per session, so records from a
// source reach the sink in arrival order.
type Router struct {
	dec   *decoder.Decoder
	state *session.State
	sink  ports.Sink
	obs   ports.Observability
}

func NewRouter(dec *decoder.Decoder, state *session.State, sink ports.Sink, obs ports.Observability) *Router {
	if dec == nil {
		dec = decoder.New()
	}
	return &Router{dec: dec, state: state, sink: sink, obs: obs}
}

// Handle never panics. The returned error has already been logged.
func (r *Router) Handle(ctx context.Context, n domain.Notification) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notification from %s: panic: %v", n.Source, p)
			r.obs.LogError("notification_panic", err)
		}
	}()

	r.obs.IncCounter(observability.MetricNotificationsReceived, 1)

	if !utf8.Valid(n.Data) {
		r.obs.IncCounter(observability.MetricNotificationsInvalid, 1)
		err := domain.Wrap(domain.ErrDecode, "notification", fmt.Errorf("payload is not valid UTF-8"))
		r.obs.LogWarn("notification_not_text", err,
			ports.F("source", n.Source),
			ports.F("hex", hex.EncodeToString(n.Data)))
		return err
	}
	text := strings.TrimSpace(string(n.Data))
	r.obs.LogDebug("notification", ports.F("source", n.Source), ports.F("text", text))

	if r.state.Paused() {
		r.obs.IncCounter(observability.MetricNotificationsPaused, 1)
		return nil
	}

	rec, derr := r.dec.Decode(text)
	if derr != nil {
		r.obs.IncCounter(observability.MetricRecordsDegraded, 1)
		r.obs.LogWarn("record_degraded", derr, ports.F("source", n.Source))
	}

	delta := r.state.Observe(text, rec)
	r.obs.LogDebug("record", ports.F("delta", delta), ports.F("row", rec.Row()))

	start := time.Now()
	if err := r.sink.Append(ctx, rec); err != nil {
		r.obs.IncCounter(observability.MetricSinkFailures, 1)
		werr := domain.Wrap(domain.ErrSinkWrite, r.sink.Name(), err)
		r.obs.LogError("sink_append_failed", werr, ports.F("source", n.Source))
		return werr
	}
	r.obs.ObserveLatency(observability.MetricSinkLatency, time.Since(start).Seconds())
	r.obs.IncCounter(observability.MetricRecordsWritten, 1)
	return nil
}
