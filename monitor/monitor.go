// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveSubscribers prometheus.Gauge
	ActiveChannels    prometheus.Gauge
	FlaggedRecords    *prometheus.GaugeVec
	PacketsReceived   prometheus.Counter
	ViewRefreshes     prometheus.Counter
	RefreshDuration   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscribers",
			Help:      "Number of sessions subscribed to a feed channel",
		}),
		ActiveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_channels",
			Help:      "Number of channels currently streaming",
		}),
		FlaggedRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flagged_records",
			Help:      "Flagged records in the latest view refresh, per rule",
		}, []string{"rule"}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total number of packets received from feed clients",
		}),
		ViewRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_refreshes_total",
			Help:      "Total number of view recomputations",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "View recomputation latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.ActiveSubscribers,
		m.ActiveChannels,
		m.FlaggedRecords,
		m.PacketsReceived,
		m.ViewRefreshes,
		m.RefreshDuration,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncSubscribers() {
	m.metrics.ActiveSubscribers.Inc()
}

func (m *Monitor) DecSubscribers() {
	m.metrics.ActiveSubscribers.Dec()
}

func (m *Monitor) SetActiveChannels(count int) {
	m.metrics.ActiveChannels.Set(float64(count))
}

func (m *Monitor) IncPacketsReceived() {
	m.metrics.PacketsReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

// ChannelRefreshed implements the channel observer: one call per view
// recomputation on a feed channel.
func (m *Monitor) ChannelRefreshed(rule string, flagged int, took time.Duration) {
	m.metrics.ViewRefreshes.Inc()
	m.metrics.FlaggedRecords.WithLabelValues(rule).Set(float64(flagged))
	m.metrics.RefreshDuration.Observe(took.Seconds())
}
