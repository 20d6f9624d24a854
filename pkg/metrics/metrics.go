// Package metrics wires the proxy's operational counters through
// prometheus/client_golang, exposed via a plain net/http server when
// enabled, mirroring the small http.ServeMux shape of the teacher's
// pkg/gateway/http server rather than pulling in a router framework for
// one handler.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the proxy's prometheus counters.
type Metrics struct {
	registry *prometheus.Registry

	FramesForwarded    prometheus.Counter // serial -> UDP
	DatagramsForwarded prometheus.Counter // UDP -> serial
	DecodeErrors       prometheus.Counter
}

// New registers and returns a fresh counter set. lost is polled on every
// scrape to mirror the Log subsystem's already-monotonic lost-message
// count (pkg/log.Logger.Lost) rather than requiring a second, independent
// increment site; pass nil if no Logger is in play.
func New(lost func() uint64) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		FramesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conestoga",
			Name:      "frames_forwarded_total",
			Help:      "Frames decoded from the serial link and forwarded as UDP datagrams.",
		}),
		DatagramsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conestoga",
			Name:      "datagrams_forwarded_total",
			Help:      "UDP datagrams received and forwarded as serial frames.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conestoga",
			Name:      "frame_decode_errors_total",
			Help:      "Frames discarded due to checksum, CRC, or overflow failure.",
		}),
	}

	if lost == nil {
		lost = func() uint64 { return 0 }
	}
	lostLogMessages := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "conestoga",
		Name:      "log_messages_lost_total",
		Help:      "Log messages lost to irrecoverable emission failure.",
	}, func() float64 { return float64(lost()) })

	registry.MustRegister(m.FramesForwarded, m.DatagramsForwarded, m.DecodeErrors, lostLogMessages)
	return m
}

// Server wraps an *http.Server exposing the counters at /metrics.
type Server struct {
	http *http.Server
}

// NewServer binds a /metrics handler for m at addr. The server does not
// begin listening until Serve is called.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// Serve blocks, serving /metrics until the server is shut down.
func (s *Server) Serve() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
