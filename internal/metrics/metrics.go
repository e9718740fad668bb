// Package metrics holds the Prometheus collectors of the session lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tidal"

// Login outcomes.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultExpired = "expired"
)

// Collectors is safe to use as a nil pointer, which records nothing.
type Collectors struct {
	loginsStarted  prometheus.Counter
	loginsResolved *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	pendingLogins  prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		loginsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_started_total",
			Help:      "Device logins started.",
		}),
		loginsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_resolved_total",
			Help:      "Device logins that left the pending table, by result.",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_cache_total",
			Help:      "Authenticated session cache lookups, by result.",
		}, []string{"result"}),
		pendingLogins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_logins",
			Help:      "Device logins awaiting user action.",
		}),
	}
	for _, collector := range []prometheus.Collector{c.loginsStarted, c.loginsResolved, c.cacheLookups, c.pendingLogins} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) LoginStarted() {
	if c == nil {
		return
	}
	c.loginsStarted.Inc()
}

func (c *Collectors) LoginResolved(result string) {
	if c == nil {
		return
	}
	c.loginsResolved.WithLabelValues(result).Inc()
}

func (c *Collectors) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collectors) SetPending(n int) {
	if c == nil {
		return
	}
	c.pendingLogins.Set(float64(n))
}
