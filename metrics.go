package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrsetMetrics struct {
	Registry *prom.Registry
	Node     *NodeMetrics
	Sender   *SenderMetrics
}

type NodeMetrics struct {
	Adds    metrics.Counter
	Removes metrics.Counter
	Merges  metrics.Counter
	Members metrics.Gauge
}

type SenderMetrics struct {
	Pushes   metrics.Counter
	Failures metrics.Counter
}

func newCounter(reg *prom.Registry, subsystem string, name string, help string, labels ...string) metrics.Counter {

	cv := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "orset",
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	reg.MustRegister(cv)

	return prometheus.NewCounter(cv)
}

// NewOrsetMetrics returns discarding metrics if
// prometheusAddr is empty and metrics registered
// with a fresh Prometheus registry otherwise.
func NewOrsetMetrics(prometheusAddr string) *OrsetMetrics {

	m := &OrsetMetrics{}

	if prometheusAddr == "" {

		m.Node = &NodeMetrics{
			Adds:    discard.NewCounter(),
			Removes: discard.NewCounter(),
			Merges:  discard.NewCounter(),
			Members: discard.NewGauge(),
		}
		m.Sender = &SenderMetrics{
			Pushes:   discard.NewCounter(),
			Failures: discard.NewCounter(),
		}

		return m
	}

	m.Registry = prom.NewRegistry()

	members := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "orset",
		Subsystem: "node",
		Name:      "members",
		Help:      "Number of elements currently in the set",
	}, nil)
	m.Registry.MustRegister(members)

	m.Node = &NodeMetrics{
		Adds:    newCounter(m.Registry, "node", "adds_total", "Number of local adds"),
		Removes: newCounter(m.Registry, "node", "removes_total", "Number of local removes"),
		Merges:  newCounter(m.Registry, "node", "merges_total", "Number of merged replica states"),
		Members: prometheus.NewGauge(members),
	}
	m.Sender = &SenderMetrics{
		Pushes:   newCounter(m.Registry, "sender", "pushes_total", "Number of state pushes per peer", "peer"),
		Failures: newCounter(m.Registry, "sender", "failures_total", "Number of failed state pushes per peer", "peer"),
	}

	return m
}

// Handler exposes the registry, or nil if
// metrics are discarded.
func (m *OrsetMetrics) Handler() http.Handler {

	if m.Registry == nil {
		return nil
	}

	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func runPromHTTP(logger log.Logger, addr string, handler http.Handler) {

	if addr == "" || handler == nil {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
