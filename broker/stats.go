package broker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds the broker-wide monotonic counters and gauges. The same
// numbers back both the Prometheus registry and the periodic
// $SYS/broker/... publication, so the two surfaces can never disagree.
type Stats struct {
	Started time.Time

	ClientsConnected    atomic.Int64
	ClientsTotal        atomic.Int64
	ClientsMaximum      atomic.Int64
	MessagesReceived    atomic.Int64
	MessagesSent        atomic.Int64
	MessagesDropped     atomic.Int64
	SubscriptionsActive atomic.Int64
}

func newStats() *Stats {
	return &Stats{Started: time.Now()}
}

// Uptime returns whole seconds since the broker started.
func (s *Stats) Uptime() int64 {
	return int64(time.Since(s.Started).Seconds())
}

func (s *Stats) connectClient() {
	s.ClientsTotal.Add(1)
	n := s.ClientsConnected.Add(1)
	for {
		max := s.ClientsMaximum.Load()
		if n <= max || s.ClientsMaximum.CompareAndSwap(max, n) {
			return
		}
	}
}

func (s *Stats) disconnectClient() {
	s.ClientsConnected.Add(-1)
}

// RegisterMetrics exposes the broker's counters on reg. The collectors
// read the live atomics, so registration has no sampling loop to manage.
func (b *Broker) RegisterMetrics(reg prometheus.Registerer) error {
	s := b.stats

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "axbroker", Name: "clients_connected",
			Help: "Number of currently connected clients.",
		}, func() float64 { return float64(s.ClientsConnected.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "axbroker", Name: "clients_total",
			Help: "Total number of accepted CONNECTs since start.",
		}, func() float64 { return float64(s.ClientsTotal.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "axbroker", Name: "clients_maximum",
			Help: "High-water mark of concurrently connected clients.",
		}, func() float64 { return float64(s.ClientsMaximum.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "axbroker", Name: "messages_received_total",
			Help: "PUBLISH packets received from clients.",
		}, func() float64 { return float64(s.MessagesReceived.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "axbroker", Name: "messages_sent_total",
			Help: "PUBLISH packets delivered to subscribers.",
		}, func() float64 { return float64(s.MessagesSent.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "axbroker", Name: "messages_dropped_total",
			Help: "PUBLISH packets that could not be delivered.",
		}, func() float64 { return float64(s.MessagesDropped.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "axbroker", Name: "subscriptions_active",
			Help: "Number of active subscriptions across all sessions.",
		}, func() float64 { return float64(s.SubscriptionsActive.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "axbroker", Name: "retained_messages",
			Help: "Number of retained messages held by the topic tree.",
		}, func() float64 {
			count, err := b.retained.Count(context.Background())
			if err != nil {
				return 0
			}
			return float64(count)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "axbroker", Name: "uptime_seconds",
			Help: "Seconds since the broker started.",
		}, func() float64 { return float64(s.Uptime()) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Stats exposes the live counters, e.g. for the $SYS publisher and tests.
func (b *Broker) Stats() *Stats {
	return b.stats
}
