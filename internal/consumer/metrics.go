package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeHandled     = "handled"
	outcomeFailed      = "failed"
	outcomeUndecodable = "undecodable"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runlog",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Consumed messages by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	snapshotVersionGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "runlog",
		Subsystem: "consumer",
		Name:      "snapshot_version",
		Help:      "Snapshot version of the latest handled event per snapshot key.",
	}, []string{"snapshot_key"})

	eventLagGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "runlog",
		Subsystem: "consumer",
		Name:      "event_lag_seconds",
		Help:      "Delay between the broker timestamp and handling of the latest message.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, snapshotVersionGauge, eventLagGauge)
}

func recordOutcome(topic, eventType, outcome string) {
	messagesCounter.WithLabelValues(topic, eventType, outcome).Inc()
}

func recordHandled(msg Message) {
	recordOutcome(msg.Topic, msg.EventType, outcomeHandled)
	if msg.Version > 0 {
		snapshotVersionGauge.WithLabelValues(msg.SnapshotKey).Set(float64(msg.Version))
	}
	if !msg.Timestamp.IsZero() {
		eventLagGauge.WithLabelValues(msg.Topic).Set(time.Since(msg.Timestamp).Seconds())
	}
}
