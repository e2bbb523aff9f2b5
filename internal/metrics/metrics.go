// Package metrics holds the Prometheus collectors for sync and remote calls.
package metrics

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Outcome labels for mutations.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeRejected   = "rejected"
)

// Metrics groups every collector tada exports. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	MutationsTotal  *prometheus.CounterVec
	RefreshTotal    *prometheus.CounterVec
	RemoteRequests  *prometheus.CounterVec
	RemoteDuration  *prometheus.HistogramVec
	PendingMutation prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)
	m.Registry = reg
	return m
}

// NewWith registers all collectors on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tada_sync_mutations_total",
			Help: "Optimistic mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tada_sync_refresh_total",
			Help: "Refreshes by the source that ended up on screen",
		}, []string{"source"}),
		RemoteRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tada_remote_requests_total",
			Help: "Remote API calls by operation and HTTP status (0 = transport failure)",
		}, []string{"op", "code"}),
		RemoteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tada_remote_request_duration_seconds",
			Help:    "Remote API call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		PendingMutation: f.NewGauge(prometheus.GaugeOpts{
			Name: "tada_sync_pending_mutations",
			Help: "Mutations waiting on the remote API",
		}),
	}
}

func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) Refresh(source string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) Remote(op string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.RemoteDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) PendingAdd(delta float64) {
	if m == nil {
		return
	}
	m.PendingMutation.Add(delta)
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if m == nil || m.Registry == nil {
		return fmt.Errorf("metrics: no registry")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	return m.serveOn(ctx, ln)
}

// serveOn owns ln. It returns only after the server has stopped.
func (m *Metrics) serveOn(ctx context.Context, ln net.Listener) error {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &fasthttp.Server{
		Name: "tada-metrics",
		Handler: func(rc *fasthttp.RequestCtx) {
			if string(rc.Path()) != "/metrics" {
				rc.SetStatusCode(fasthttp.StatusNotFound)
				return
			}
			handler(rc)
		},
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		err := srv.Shutdown()
		// Shutdown misses a listener Serve has not registered yet.
		_ = ln.Close()
		<-errc
		return err
	case err := <-errc:
		return fmt.Errorf("metrics serve: %w", err)
	}
}
