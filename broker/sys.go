package broker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/axmq/axbroker/hook"
)

// Version is reported on $SYS/broker/version and in SysInfo snapshots.
const Version = "0.9.0"

// SysInfo builds a point-in-time snapshot of the broker's counters in
// the shape the hook layer consumes.
func (b *Broker) SysInfo() *hook.SysInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	retained, _ := b.retained.Count(context.Background())

	return &hook.SysInfo{
		Uptime:           b.stats.Uptime(),
		Version:          Version,
		Started:          b.stats.Started,
		Time:             time.Now(),
		ClientsConnected: b.stats.ClientsConnected.Load(),
		ClientsTotal:     b.stats.ClientsTotal.Load(),
		ClientsMaximum:   b.stats.ClientsMaximum.Load(),
		ClientsDisconnected: b.stats.ClientsTotal.Load() -
			b.stats.ClientsConnected.Load(),
		MessagesReceived: b.stats.MessagesReceived.Load(),
		MessagesSent:     b.stats.MessagesSent.Load(),
		MessagesDropped:  b.stats.MessagesDropped.Load(),
		Subscriptions:    b.stats.SubscriptionsActive.Load(),
		Retained:         retained,
		MemoryAlloc:      mem.Alloc,
		Threads:          runtime.NumGoroutine(),
	}
}

// PublishSysTopics publishes the current counters as retained QoS 0
// messages under $SYS/broker/..., the cadence being the caller's concern
// (cmd runs it on the stats-interval-s ticker). $-prefixed topics are
// invisible to root-level wildcard subscribers, so only clients that
// subscribe to the $SYS tree explicitly see these.
func (b *Broker) PublishSysTopics(ctx context.Context) error {
	info := b.SysInfo()
	b.hooks.OnSysInfoTick(info)

	topics := []struct {
		topic   string
		payload string
	}{
		{"$SYS/broker/version", info.Version},
		{"$SYS/broker/uptime", strconv.FormatInt(info.Uptime, 10)},
		{"$SYS/broker/clients/connected", strconv.FormatInt(info.ClientsConnected, 10)},
		{"$SYS/broker/clients/total", strconv.FormatInt(info.ClientsTotal, 10)},
		{"$SYS/broker/clients/maximum", strconv.FormatInt(info.ClientsMaximum, 10)},
		{"$SYS/broker/messages/received", strconv.FormatInt(info.MessagesReceived, 10)},
		{"$SYS/broker/messages/sent", strconv.FormatInt(info.MessagesSent, 10)},
		{"$SYS/broker/messages/dropped", strconv.FormatInt(info.MessagesDropped, 10)},
		{"$SYS/broker/subscriptions/count", strconv.FormatInt(info.Subscriptions, 10)},
		{"$SYS/broker/retained/count", strconv.FormatInt(info.Retained, 10)},
		{"$SYS/broker/heap/current", strconv.FormatUint(info.MemoryAlloc, 10)},
	}

	for _, t := range topics {
		if err := b.publishRetainedSys(ctx, t.topic, []byte(t.payload)); err != nil {
			return fmt.Errorf("publish %s: %w", t.topic, err)
		}
	}
	return nil
}

// RunSysPublisher republishes the $SYS tree every interval until ctx is
// cancelled. A non-positive interval disables publication entirely.
func (b *Broker) RunSysPublisher(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.PublishSysTopics(ctx); err != nil {
				return err
			}
		}
	}
}
