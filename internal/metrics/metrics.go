// Package metrics exports pipeline outcome counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capturesync/internal/logging"
	"capturesync/internal/pipeline"
)

const namespace = "capturesync"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry
	files    *prometheus.CounterVec
	skips    *prometheus.CounterVec
	faces    prometheus.Counter
	indexErr prometheus.Counter
	duration prometheus.Histogram
	state    *prometheus.GaugeVec
}

// New registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files that reached a pipeline step, by record kind.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Skipped or failed files by reason.",
		}, []string{"reason"}),
		faces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_indexed_total",
			Help:      "Face vectors written to the index.",
		}),
		indexErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_failures_total",
			Help:      "Published images whose face indexing failed.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_seconds",
			Help:      "Time from detection to a published composite.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current lifecycle state.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(m.files, m.skips, m.faces, m.indexErr, m.duration, m.state)
	m.SetState(pipeline.Idle)
	return m
}

// OnEvent implements pipeline.Observer.
func (m *Metrics) OnEvent(r pipeline.Record) {
	switch r.Kind {
	case pipeline.KindInfo:
		return
	case pipeline.KindProcessed:
		m.duration.Observe(r.Elapsed.Seconds())
	case pipeline.KindSkipped, pipeline.KindFailed:
		m.skips.WithLabelValues(r.Reason).Inc()
	case pipeline.KindIndexed:
		if r.Err != nil {
			m.indexErr.Inc()
		}
		m.faces.Add(float64(r.Faces))
	}
	m.files.WithLabelValues(string(r.Kind)).Inc()
}

// SetState marks state as current.
func (m *Metrics) SetState(state pipeline.State) {
	for _, s := range []pipeline.State{pipeline.Idle, pipeline.Running, pipeline.Paused, pipeline.Stopped} {
		value := 0.0
		if s == state {
			value = 1
		}
		m.state.WithLabelValues(s.String()).Set(value)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server is a running /metrics listener.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	done   chan struct{}
	logger *slog.Logger
}

// Listen starts serving m on bind (host:port).
func Listen(m *Metrics, bind string, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", bind, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(logger, "metrics"),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(s.logger, "metrics listener stopped", "metrics_serve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
				logging.String(logging.FieldImpact, "metrics are not exported"),
			)
		}
	}()
	s.logger.Info("metrics listener started", logging.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close shuts the listener down.
func (s *Server) Close(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
