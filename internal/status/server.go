package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/ports"
	"github.com/ghalamif/AegisSense/internal/session"
)

// Server exposes the session state, the acquisition toggle and metrics.
type Server struct {
	state    *session.State
	gatherer prometheus.Gatherer
	obs      ports.Observability

	srv *http.Server
	ln  net.Listener
}

// NewServer builds the server. A nil gatherer serves the default registry.
func NewServer(addr string, state *session.State, gatherer prometheus.Gatherer, obs ports.Observability) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{state: state, gatherer: gatherer, obs: obs}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.publishAcquisition(state.Paused())
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePanel)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /acquisition/toggle", s.handleAcquisition(func() { s.state.Toggle() }))
	mux.HandleFunc("POST /acquisition/pause", s.handleAcquisition(func() { s.state.SetPaused(true) }))
	mux.HandleFunc("POST /acquisition/resume", s.handleAcquisition(func() { s.state.SetPaused(false) }))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("status listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	s.obs.LogInfo("status_listening", ports.F("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.obs.LogError("status_server_exited", err)
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FromSnapshot(s.state.Snapshot()))
}

func (s *Server) handleAcquisition(apply func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply()
		paused := s.state.Paused()
		s.publishAcquisition(paused)
		s.obs.LogInfo("acquisition_changed",
			ports.F("paused", paused),
			ports.F("path", r.URL.Path),
			ports.F("remote", r.RemoteAddr))
		writeJSON(w, http.StatusOK, FromSnapshot(s.state.Snapshot()))
	}
}

// handlePanel renders the two lines an operator needs in plain text.
func (s *Server) handlePanel(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Acquisition: %s\nLast Message: %s\n", snap.AcquisitionLabel(), snap.LastMessage)
}

func (s *Server) publishAcquisition(paused bool) {
	v := 1.0
	if paused {
		v = 0
	}
	s.obs.SetGauge(observability.MetricAcquisition, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
