package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scan result labels.
const (
	ScanOK        = "ok"
	ScanPartial   = "partial"
	ScanError     = "error"
	ScanDisabled  = "disabled"
	ScanCoalesced = "coalesced"
)

// Publisher groups the collectors exported by the scheduled publisher.
type Publisher struct {
	scans        *prometheus.CounterVec
	published    prometheus.Counter
	publishErrs  prometheus.Counter
	scanDuration prometheus.Histogram
	enabled      prometheus.Gauge
	frequency    prometheus.Gauge
}

// NewPublisher creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewPublisher(reg prometheus.Registerer) *Publisher {
	m := &Publisher{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tadka",
			Subsystem: "publisher",
			Name:      "scans_total",
			Help:      "Publisher ticks by outcome.",
		}, []string{"result"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tadka",
			Subsystem: "publisher",
			Name:      "articles_published_total",
			Help:      "Articles moved from scheduled to published.",
		}),
		publishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tadka",
			Subsystem: "publisher",
			Name:      "publish_errors_total",
			Help:      "Per-article store failures during scans.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tadka",
			Subsystem: "publisher",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of scans that reached the article store.",
			Buckets:   prometheus.DefBuckets,
		}),
		enabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tadka",
			Subsystem: "scheduler",
			Name:      "enabled",
			Help:      "1 when scheduled publishing is enabled.",
		}),
		frequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tadka",
			Subsystem: "scheduler",
			Name:      "check_frequency_minutes",
			Help:      "Currently applied scan period in minutes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.scans, m.published, m.publishErrs, m.scanDuration, m.enabled, m.frequency)
	}
	return m
}

func (m *Publisher) ObserveScan(result string, published, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(result).Inc()
	m.published.Add(float64(published))
	m.publishErrs.Add(float64(failed))
	if result == ScanOK || result == ScanPartial {
		m.scanDuration.Observe(took.Seconds())
	}
}

func (m *Publisher) ObserveSkip(result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(result).Inc()
}

func (m *Publisher) SetSettings(enabled bool, minutes int) {
	if m == nil {
		return
	}
	if enabled {
		m.enabled.Set(1)
	} else {
		m.enabled.Set(0)
	}
	m.frequency.Set(float64(minutes))
}
