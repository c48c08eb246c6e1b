package spantree

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry this package's metrics are
// registered against, so a host process can expose them alongside
// its own.
var Registry = prometheus.NewRegistry()

var (
	commandsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "spantree_commands_total",
			Help: "Inbound protocol commands dispatched, by verb.",
		},
		[]string{"command"},
	)

	commandErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "spantree_command_errors_total",
			Help: "Inbound commands that returned a non-fatal handler error, by verb.",
		},
		[]string{"command"},
	)

	hooksEmittedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "spantree_hooks_emitted_total",
			Help: "Hook Bus events emitted, by command name.",
		},
		[]string{"command"},
	)

	networkUsers = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "spantree_network_users",
			Help: "Current number of users known to the Network Store.",
		},
	)

	networkServers = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "spantree_network_servers",
			Help: "Current number of servers known to the Network Store.",
		},
	)

	networkChannels = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "spantree_network_channels",
			Help: "Current number of channels known to the Network Store.",
		},
	)

	linkConnected = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "spantree_link_connected",
			Help: "1 if CAPAB negotiation with the uplink has completed, 0 otherwise.",
		},
	)
)

// recordCommand increments the per-verb dispatch counter and, if err
// is non-nil, the error counter.
func recordCommand(command string, err error) {
	commandsTotal.WithLabelValues(command).Inc()
	if err != nil {
		commandErrorsTotal.WithLabelValues(command).Inc()
	}
}

// recordHookEmit increments the per-command Hook Bus counter.
func recordHookEmit(command string) {
	hooksEmittedTotal.WithLabelValues(command).Inc()
}

// PublishStoreGauges snapshots net's current population sizes into
// the gauges above. Callers should invoke it periodically, never from
// inside a critical section (Network.Counts takes the store's RLock
// itself).
func PublishStoreGauges(net *Network) {
	u, s, ch := net.Counts()
	networkUsers.Set(float64(u))
	networkServers.Set(float64(s))
	networkChannels.Set(float64(ch))
}

// PublishLinkState records whether core has completed CAPAB negotiation.
func PublishLinkState(core *Core) {
	if core.Connected() {
		linkConnected.Set(1)
	} else {
		linkConnected.Set(0)
	}
}

// ServeMetrics starts a dedicated HTTP server exposing /metrics on addr.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return http.ListenAndServe(addr, mux)
}
