package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the agent collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TelemetryReceived *prometheus.CounterVec
	TelemetryDropped  *prometheus.CounterVec
	Predictions       *prometheus.CounterVec
	PredictedQuantity *prometheus.GaugeVec
	StaleModels       prometheus.Gauge
	Reloads           *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TelemetryReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactive_telemetry_received_total",
			Help: "Telemetry messages delivered to a device model",
		}, []string{"topic"}),
		TelemetryDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactive_telemetry_dropped_total",
			Help: "Telemetry messages that could not be decoded",
		}, []string{"topic"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactive_predictions_total",
			Help: "Predictions computed per device model",
		}, []string{"topic", "model"}),
		PredictedQuantity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transactive_predicted_quantity",
			Help: "Last predicted quantity at the current operating point",
		}, []string{"topic"}),
		StaleModels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transactive_stale_models",
			Help: "Device models whose last telemetry sample was incomplete",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactive_config_reloads_total",
			Help: "Model configuration reloads by outcome",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.TelemetryReceived,
		m.TelemetryDropped,
		m.Predictions,
		m.PredictedQuantity,
		m.StaleModels,
		m.Reloads,
	)
	return m
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
