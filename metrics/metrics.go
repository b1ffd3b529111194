// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the bot's counters. It implements the
// observers used by the router, the store and the delivery queue.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	commands      *prometheus.CounterVec
	announcements *prometheus.CounterVec
	storeWrites   *prometheus.CounterVec
}

// New registers the bot's collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birthdaybot_commands_total",
		Help: "Chat commands handled, by command and outcome",
	}, []string{"command", "outcome"})

	announcements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birthdaybot_announcements_total",
		Help: "Birthday announcement delivery attempts, by outcome",
	}, []string{"outcome"})

	storeWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "birthdaybot_store_writes_total",
		Help: "Snapshot writes to the birthday store, by result",
	}, []string{"result"})

	registry.MustRegister(
		commands,
		announcements,
		storeWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		commands:      commands,
		announcements: announcements,
		storeWrites:   storeWrites,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand counts a handled chat command.
func (m *Metrics) ObserveCommand(command, outcome string) {
	m.commands.WithLabelValues(command, outcome).Inc()
}

// ObserveAnnouncement counts an announcement delivery attempt.
func (m *Metrics) ObserveAnnouncement(outcome string) {
	m.announcements.WithLabelValues(outcome).Inc()
}

// ObserveStoreWrite counts a snapshot write.
func (m *Metrics) ObserveStoreWrite(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeWrites.WithLabelValues(result).Inc()
}
