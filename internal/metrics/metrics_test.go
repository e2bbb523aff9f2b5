package metrics

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Mutation("toggle", OutcomeCommitted)
	m.Mutation("toggle", OutcomeCommitted)
	m.Mutation("toggle", OutcomeRolledBack)
	m.Refresh("cache")
	m.Remote("list", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("toggle", OutcomeCommitted)); got != 2 {
		t.Errorf("committed toggles: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("toggle", OutcomeRolledBack)); got != 1 {
		t.Errorf("rolled back toggles: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues("cache")); got != 1 {
		t.Errorf("cache refreshes: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RemoteRequests.WithLabelValues("list", "200")); got != 1 {
		t.Errorf("remote list 200: got %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Mutation("add", OutcomeCommitted)
	m.Refresh("remote")
	m.Remote("get", 404, time.Millisecond)
	m.PendingAdd(1)
}

func TestServeExposesMetrics(t *testing.T) {
	m := New()
	m.Mutation("add", OutcomeCommitted)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.serveOn(ctx, ln) }()

	status, body, err := fasthttp.GetTimeout(nil, "http://"+addr+"/metrics", time.Second)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	if status != fasthttp.StatusOK || !strings.Contains(string(body), "tada_sync_mutations_total") {
		t.Errorf("GET /metrics: status %d, body %q", status, body)
	}
	if status, _, _ := fasthttp.GetTimeout(nil, "http://"+addr+"/other", time.Second); status != fasthttp.StatusNotFound {
		t.Errorf("GET /other: got %d, want 404", status)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("serveOn: %v", err)
	}
	if c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond); err == nil {
		c.Close()
		t.Error("listener still accepting after shutdown")
	}
}

func TestServeStopsWhenCanceledBeforeStart(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- New().serveOn(ctx, ln) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveOn did not return after cancellation")
	}
	if c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond); err == nil {
		c.Close()
		t.Error("listener still accepting after shutdown")
	}
}

func TestServeWithoutRegistry(t *testing.T) {
	var m *Metrics
	if err := m.Serve(context.Background(), "127.0.0.1:0"); err == nil {
		t.Error("nil metrics should refuse to serve")
	}
}
