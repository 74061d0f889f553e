package mongodriver

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/event"

	"github.com/circleci/mongoclient/system"
)

// PoolMetrics counts connection pool events. It is a system.MetricProducer for statsd gauges
// and a prometheus.Collector.
type PoolMetrics struct {
	name string

	mu                 sync.RWMutex
	connClosed         int64
	poolCreated        int64
	connCreated        int64
	getFailed          int64
	getSucceeded       int64
	connReturned       int64
	poolCleared        int64
	poolClosed         int64
	maxPoolSize        uint64
	minPoolSize        uint64
	waitQueueTimeoutMS uint64

	descs map[string]*prometheus.Desc
}

var (
	_ system.MetricProducer = (*PoolMetrics)(nil)
	_ prometheus.Collector  = (*PoolMetrics)(nil)
)

var poolGauges = []string{
	"connection_closed",
	"connection_created",
	"pool_created",
	"get_failed",
	"get_succeeded",
	"connection_returned",
	"pool_cleared",
	"pool_closed",
	"max_pool_size",
	"min_pool_size",
	"wait_queue_timeout_ms",
}

func NewPoolMetrics(name string) *PoolMetrics {
	descs := make(map[string]*prometheus.Desc, len(poolGauges))
	for _, g := range poolGauges {
		descs[g] = prometheus.NewDesc(
			prometheus.BuildFQName("mongoclient", "pool", g),
			"MongoDB connection pool "+g+".",
			nil,
			prometheus.Labels{"pool": name},
		)
	}
	return &PoolMetrics{
		name:  name,
		descs: descs,
	}
}

func (c *PoolMetrics) MetricName() string {
	return c.name
}

func (c *PoolMetrics) Gauges(_ context.Context) map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]float64{
		"connection_closed":     float64(c.connClosed),
		"connection_created":    float64(c.connCreated),
		"pool_created":          float64(c.poolCreated),
		"get_failed":            float64(c.getFailed),
		"get_succeeded":         float64(c.getSucceeded),
		"connection_returned":   float64(c.connReturned),
		"pool_cleared":          float64(c.poolCleared),
		"pool_closed":           float64(c.poolClosed),
		"max_pool_size":         float64(c.maxPoolSize),
		"min_pool_size":         float64(c.minPoolSize),
		"wait_queue_timeout_ms": float64(c.waitQueueTimeoutMS),
	}
}

func (c *PoolMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range poolGauges {
		ch <- c.descs[g]
	}
}

func (c *PoolMetrics) Collect(ch chan<- prometheus.Metric) {
	gauges := c.Gauges(context.Background())
	for _, g := range poolGauges {
		ch <- prometheus.MustNewConstMetric(c.descs[g], prometheus.GaugeValue, gauges[g])
	}
}

// PoolMonitor returns a monitor that records events before handing them to parent, if any.
func (c *PoolMetrics) PoolMonitor(parent *event.PoolMonitor) *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(e *event.PoolEvent) {
			if parent != nil && parent.Event != nil {
				parent.Event(e)
			}
			c.updateStats(e)
		},
	}
}

func (c *PoolMetrics) updateStats(e *event.PoolEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case event.ConnectionClosed:
		c.connClosed++
	case event.PoolCreated:
		c.poolCreated++
	case event.ConnectionCreated:
		c.connCreated++
	case event.GetFailed:
		c.getFailed++
	case event.GetSucceeded:
		c.getSucceeded++
	case event.ConnectionReturned:
		c.connReturned++
	case event.PoolCleared:
		c.poolCleared++
	case event.PoolClosedEvent:
		c.poolClosed++
	}

	if e.PoolOptions != nil {
		c.maxPoolSize = e.PoolOptions.MaxPoolSize
		c.minPoolSize = e.PoolOptions.MinPoolSize
		c.waitQueueTimeoutMS = e.PoolOptions.WaitQueueTimeoutMS
	}
}
