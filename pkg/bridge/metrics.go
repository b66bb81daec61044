package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on the debug server /metrics endpoint.
var (
	metricCommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vantage_mqtt_commands_sent_total",
		Help: "Commands successfully written to the control bus.",
	})
	metricCommandsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vantage_mqtt_commands_failed_total",
		Help: "Commands rejected by the control bus and dropped.",
	})
	metricPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vantage_mqtt_polls_total",
		Help: "Bulk state queries issued against the control bus.",
	})
	metricPollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vantage_mqtt_poll_failures_total",
		Help: "Bulk state queries that failed.",
	})
	metricEventsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vantage_mqtt_activity_events_total",
		Help: "Activity events extracted from the diagnostic stream.",
	})
)
