// Package metrics exposes streaming counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/telemetry.replay/internal/monitoring"
)

const namespace = "telemetry"

// Metrics holds the collectors for one streaming run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	samplesSent  *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
	sendRetries  prometheus.Counter
	sendDuration prometheus.Histogram
	loops        prometheus.Counter
	state        prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samplesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_sent_total",
				Help:      "Samples published, by stream.",
			},
			[]string{"stream_id"},
		),
		sendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "send_failures_total",
				Help:      "Samples that could not be published, by stream.",
			},
			[]string{"stream_id"},
		),
		sendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_retries_total",
			Help:      "Immediate send retries after a transport error.",
		}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent handing one message to the transport.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		loops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_loops_total",
			Help:      "Completed dataset passes that were rewound.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_state",
			Help:      "Current stream state (0 starting, 1 running, 2 looping, 3 draining, 4 stopped).",
		}),
	}
	reg.MustRegister(m.samplesSent, m.sendFailures, m.sendRetries, m.sendDuration, m.loops, m.state)
	return m
}

// ObserveSend records the outcome of one publish.
func (m *Metrics) ObserveSend(streamID string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sendFailures.WithLabelValues(streamID).Inc()
		return
	}
	m.samplesSent.WithLabelValues(streamID).Inc()
	m.sendDuration.Observe(d.Seconds())
}

// IncRetries counts one immediate retry.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.sendRetries.Inc()
}

// IncLoops counts one rewind of the replay source.
func (m *Metrics) IncLoops() {
	if m == nil {
		return
	}
	m.loops.Inc()
}

// SetState records the numeric stream state.
func (m *Metrics) SetState(v int) {
	if m == nil {
		return
	}
	m.state.Set(float64(v))
}

// Handler returns the HTTP handler serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	srv *http.Server
	lis net.Listener
}

// Listen binds addr and prepares a metrics server for g.
func Listen(addr string, g prometheus.Gatherer) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	return &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		lis: lis,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.lis)
	}()
	monitoring.Logf("[Metrics] serving on http://%s/metrics", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
