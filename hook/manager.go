package hook

import (
	"sync"
	"sync/atomic"
)

// Manager holds the registered hooks and fans each broker event out to
// the ones that provide it. The hook list is copy-on-write behind an
// atomic pointer: dispatch on the packet path never takes a lock, only
// Add/Remove do.
type Manager struct {
	mu    sync.Mutex
	hooks atomic.Pointer[[]Hook]
}

func NewManager() *Manager {
	m := &Manager{}
	empty := make([]Hook, 0)
	m.hooks.Store(&empty)
	return m
}

// Add registers hook; its ID must be nonempty and unused.
func (m *Manager) Add(hook Hook) error {
	if hook == nil || hook.ID() == "" {
		return ErrEmptyHookID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.hooks.Load()
	for _, h := range current {
		if h.ID() == hook.ID() {
			return ErrHookAlreadyExists
		}
	}

	next := make([]Hook, len(current), len(current)+1)
	copy(next, current)
	next = append(next, hook)
	m.hooks.Store(&next)
	return nil
}

// Remove unregisters the hook with the given ID and stops it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := *m.hooks.Load()
	next := make([]Hook, 0, len(current))
	var removed Hook
	for _, h := range current {
		if h.ID() == id {
			removed = h
			continue
		}
		next = append(next, h)
	}
	if removed == nil {
		return ErrHookNotFound
	}

	m.hooks.Store(&next)
	return removed.Stop()
}

// Get returns the hook registered under id.
func (m *Manager) Get(id string) (Hook, bool) {
	for _, h := range *m.hooks.Load() {
		if h.ID() == id {
			return h, true
		}
	}
	return nil, false
}

// Len reports how many hooks are registered.
func (m *Manager) Len() int {
	return len(*m.hooks.Load())
}

// each invokes fn for every hook providing event.
func (m *Manager) each(event Event, fn func(Hook)) {
	for _, h := range *m.hooks.Load() {
		if h.Provides(event) {
			fn(h)
		}
	}
}

// allow runs a gate across every hook providing event; the first veto
// wins.
func (m *Manager) allow(event Event, gate func(Hook) bool) bool {
	for _, h := range *m.hooks.Load() {
		if h.Provides(event) && !gate(h) {
			return false
		}
	}
	return true
}

// firstErr runs a fallible gate; the first error wins.
func (m *Manager) firstErr(event Event, gate func(Hook) error) error {
	for _, h := range *m.hooks.Load() {
		if !h.Provides(event) {
			continue
		}
		if err := gate(h); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) OnStarted() {
	m.each(OnStarted, func(h Hook) { _ = h.OnStarted() })
}

func (m *Manager) OnStopped(err error) {
	m.each(OnStopped, func(h Hook) { _ = h.OnStopped(err) })
}

func (m *Manager) OnSysInfoTick(info *SysInfo) {
	m.each(OnSysInfoTick, func(h Hook) { _ = h.OnSysInfoTick(info) })
}

func (m *Manager) OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool {
	return m.allow(OnConnectAuthenticate, func(h Hook) bool {
		return h.OnConnectAuthenticate(client, packet)
	})
}

func (m *Manager) OnACLCheck(client *Client, topic string, access AccessType) bool {
	return m.allow(OnACLCheck, func(h Hook) bool {
		return h.OnACLCheck(client, topic, access)
	})
}

func (m *Manager) OnSessionEstablished(client *Client, packet *ConnectPacket) error {
	return m.firstErr(OnSessionEstablished, func(h Hook) error {
		return h.OnSessionEstablished(client, packet)
	})
}

func (m *Manager) OnDisconnect(client *Client, err error, expire bool) {
	m.each(OnDisconnect, func(h Hook) { _ = h.OnDisconnect(client, err, expire) })
}

func (m *Manager) OnPublish(client *Client, packet *PublishPacket) error {
	return m.firstErr(OnPublish, func(h Hook) error {
		return h.OnPublish(client, packet)
	})
}

func (m *Manager) OnPublished(client *Client, packet *PublishPacket) {
	m.each(OnPublished, func(h Hook) { _ = h.OnPublished(client, packet) })
}

func (m *Manager) OnPublishDropped(client *Client, packet *PublishPacket, reason DropReason) {
	m.each(OnPublishDropped, func(h Hook) { _ = h.OnPublishDropped(client, packet, reason) })
}

func (m *Manager) OnRetainMessage(client *Client, packet *PublishPacket) error {
	return m.firstErr(OnRetainMessage, func(h Hook) error {
		return h.OnRetainMessage(client, packet)
	})
}

func (m *Manager) OnSubscribe(client *Client, sub *Subscription) error {
	return m.firstErr(OnSubscribe, func(h Hook) error {
		return h.OnSubscribe(client, sub)
	})
}

func (m *Manager) OnSubscribed(client *Client, sub *Subscription) {
	m.each(OnSubscribed, func(h Hook) { _ = h.OnSubscribed(client, sub) })
}

func (m *Manager) OnUnsubscribe(client *Client, topicFilter string) error {
	return m.firstErr(OnUnsubscribe, func(h Hook) error {
		return h.OnUnsubscribe(client, topicFilter)
	})
}

func (m *Manager) OnUnsubscribed(client *Client, topicFilter string) {
	m.each(OnUnsubscribed, func(h Hook) { _ = h.OnUnsubscribed(client, topicFilter) })
}

// OnWill threads the will through every providing hook, letting each
// rewrite the previous result.
func (m *Manager) OnWill(client *Client, will *WillMessage) *WillMessage {
	result := will
	m.each(OnWill, func(h Hook) {
		if w := h.OnWill(client, result); w != nil {
			result = w
		}
	})
	return result
}

func (m *Manager) OnWillSent(client *Client, will *WillMessage) {
	m.each(OnWillSent, func(h Hook) { _ = h.OnWillSent(client, will) })
}

// Stop stops every registered hook and empties the manager.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range *m.hooks.Load() {
		_ = h.Stop()
	}
	empty := make([]Hook, 0)
	m.hooks.Store(&empty)
}
