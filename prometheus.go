package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics holds all pipeline metrics. Registered once on the default
// registry at startup; components that run without metrics (tests) pass nil.
type PrometheusMetrics struct {
	ticksTotal      prometheus.Counter
	samplesTotal    *prometheus.CounterVec // labeled by acquisition mode
	underrunsTotal  prometheus.Counter
	analysisCycles  prometheus.Counter
	bandPower       *prometheus.GaugeVec // labeled by channel and band
	streamConnected prometheus.Gauge
	wsClients       prometheus.Gauge
	windowFill      *prometheus.GaugeVec // labeled by channel
}

// NewPrometheusMetrics registers all metrics.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		ticksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eeg_pipeline_ticks_total",
			Help: "Total scheduler ticks since start",
		}),
		samplesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eeg_samples_total",
				Help: "Samples processed, by acquisition mode",
			},
			[]string{"mode"},
		),
		underrunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eeg_underruns_total",
			Help: "Ticks in real mode where no sample was ready",
		}),
		analysisCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eeg_analysis_cycles_total",
			Help: "Completed band-power analysis cycles",
		}),
		bandPower: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eeg_band_power",
				Help: "Latest band power magnitude by channel and band",
			},
			[]string{"channel", "band"},
		),
		streamConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eeg_stream_connected",
			Help: "1 when a real stream connection is active",
		}),
		wsClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eeg_websocket_clients",
			Help: "Currently subscribed WebSocket clients",
		}),
		windowFill: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eeg_window_fill",
				Help: "Current filtered window length by channel",
			},
			[]string{"channel"},
		),
	}
}

// IncTicks counts one scheduler tick.
func (pm *PrometheusMetrics) IncTicks() {
	pm.ticksTotal.Inc()
}

// IncSamples counts one processed sample in the given mode.
func (pm *PrometheusMetrics) IncSamples(real bool) {
	mode := "synthetic"
	if real {
		mode = "real"
	}
	pm.samplesTotal.WithLabelValues(mode).Inc()
}

// IncUnderruns counts one skipped real-mode tick.
func (pm *PrometheusMetrics) IncUnderruns() {
	pm.underrunsTotal.Inc()
}

// SetConnected tracks the real-connection flag.
func (pm *PrometheusMetrics) SetConnected(connected bool) {
	if connected {
		pm.streamConnected.Set(1)
	} else {
		pm.streamConnected.Set(0)
	}
}

// SetWSClients tracks the subscriber count.
func (pm *PrometheusMetrics) SetWSClients(n int) {
	pm.wsClients.Set(float64(n))
}

// ObserveBandPowers records one analysis cycle's output as gauges.
func (pm *PrometheusMetrics) ObserveBandPowers(bands []BandPowers) {
	pm.analysisCycles.Inc()
	for _, b := range bands {
		ch := fmt.Sprintf("%d", b.Channel)
		pm.bandPower.WithLabelValues(ch, "delta").Set(b.Delta)
		pm.bandPower.WithLabelValues(ch, "theta").Set(b.Theta)
		pm.bandPower.WithLabelValues(ch, "alpha").Set(b.Alpha)
		pm.bandPower.WithLabelValues(ch, "beta").Set(b.Beta)
		pm.bandPower.WithLabelValues(ch, "gamma").Set(b.Gamma)
	}
}

// SetWindowFill records a channel's current filtered window length.
func (pm *PrometheusMetrics) SetWindowFill(channel, length int) {
	pm.windowFill.WithLabelValues(fmt.Sprintf("%d", channel)).Set(float64(length))
}

// Handler returns the scrape endpoint handler.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.Handler()
}
