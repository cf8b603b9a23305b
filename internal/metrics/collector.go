package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "syncwatch"

type Collector struct {
	roomsActive       prometheus.Gauge
	connectionsActive prometheus.Gauge
	intentsTotal      *prometheus.CounterVec
	hostChangesTotal  *prometheus.CounterVec
	timeProbesTotal   prometheus.Counter
	droppedTotal      *prometheus.CounterVec
}

// NewCollector registers all metrics in reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one member",
		}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open websocket connections",
		}),
		intentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_intents_total",
			Help:      "Control intents received, by action and result",
		}, []string{"action", "result"}),
		hostChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_changes_total",
			Help:      "Host changes, by reason",
		}, []string{"reason"}),
		timeProbesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_probes_total",
			Help:      "Clock probes answered",
		}),
		droppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Inbound messages dropped, by reason",
		}, []string{"reason"}),
	}
}

func (c *Collector) RoomCreated() { c.roomsActive.Inc() }
func (c *Collector) RoomRemoved() { c.roomsActive.Dec() }

func (c *Collector) ConnectionOpened() { c.connectionsActive.Inc() }
func (c *Collector) ConnectionClosed() { c.connectionsActive.Dec() }

func (c *Collector) ObserveIntent(action, result string) {
	c.intentsTotal.WithLabelValues(action, result).Inc()
}

func (c *Collector) HostChanged(reason string) {
	c.hostChangesTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) TimeProbe() { c.timeProbesTotal.Inc() }

func (c *Collector) Dropped(reason string) {
	c.droppedTotal.WithLabelValues(reason).Inc()
}
