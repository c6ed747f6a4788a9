// Package metrics exposes Prometheus counters for Zoom API traffic and download runs.
//
// The CLI is short-lived, so metrics are written to a node_exporter textfile
// at the end of a run instead of being scraped.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

const namespace = "zoom_recordings"

// Metrics holds the collectors of one run, registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	recordings      prometheus.Counter
	files           prometheus.Counter
	bytes           prometheus.Counter
	failures        prometheus.Counter
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests sent to Zoom, by status code and method.",
		}, []string{"code", "method"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests sent to Zoom.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"code", "method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts, by result.",
		}, []string{"result"}),
		recordings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_downloaded_total",
			Help:      "Recordings whose files were all saved.",
		}),
		files: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_downloaded_total",
			Help:      "Recording files saved to disk.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to disk by downloads.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_failures_total",
			Help:      "Recordings that failed to download.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.refreshes,
		m.recordings,
		m.files,
		m.bytes,
		m.failures,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// InstrumentTransport wraps next so every request is counted and timed.
// A nil next uses http.DefaultTransport.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.requests,
		promhttp.InstrumentRoundTripperDuration(m.requestDuration, next),
	)
}

// InstrumentRefresher counts the refresh attempts made through r
func (m *Metrics) InstrumentRefresher(r zoom.TokenRefresher) zoom.TokenRefresher {
	return &countingRefresher{TokenRefresher: r, refreshes: m.refreshes}
}

type countingRefresher struct {
	zoom.TokenRefresher
	refreshes *prometheus.CounterVec
}

func (c *countingRefresher) Refresh(ctx context.Context) bool {
	ok := c.TokenRefresher.Refresh(ctx)
	result := "failure"
	if ok {
		result = "success"
	}
	c.refreshes.WithLabelValues(result).Inc()
	return ok
}

// ObserveRecording records the outcome of saving one recording
func (m *Metrics) ObserveRecording(recording zoom.Recording, err error) {
	if err != nil {
		m.failures.Inc()
		return
	}
	m.recordings.Inc()
	m.files.Add(float64(len(recording.RecordingFiles)))
}

// AddBytes adds n downloaded bytes
func (m *Metrics) AddBytes(n int64) {
	if n > 0 {
		m.bytes.Add(float64(n))
	}
}

// WriteTextfile writes all metrics in the text exposition format to path,
// replacing it atomically. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
