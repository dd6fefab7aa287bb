package hook

import (
	"crypto/subtle"
	"sync"
)

// BasicAuthHook refuses any CONNECT whose username/password pair is not
// in its table. Password comparison is constant-time; the broker maps a
// refusal to CONNACK return code 4 (bad user name or password).
type BasicAuthHook struct {
	*Base
	mu    sync.RWMutex
	users map[string][]byte
}

func NewBasicAuthHook() *BasicAuthHook {
	return &BasicAuthHook{
		Base:  NewHookBase("basic-auth"),
		users: make(map[string][]byte),
	}
}

func (h *BasicAuthHook) Provides(event Event) bool {
	return event == OnConnectAuthenticate
}

// AddUser registers or replaces a credential pair.
func (h *BasicAuthHook) AddUser(username, password string) {
	h.mu.Lock()
	h.users[username] = []byte(password)
	h.mu.Unlock()
}

// RemoveUser forgets a username.
func (h *BasicAuthHook) RemoveUser(username string) {
	h.mu.Lock()
	delete(h.users, username)
	h.mu.Unlock()
}

// HasUser reports whether a username is registered.
func (h *BasicAuthHook) HasUser(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[username]
	return ok
}

// UserCount returns the number of registered credential pairs.
func (h *BasicAuthHook) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *BasicAuthHook) OnConnectAuthenticate(_ *Client, packet *ConnectPacket) bool {
	h.mu.RLock()
	want, ok := h.users[packet.Username]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(want, packet.Password) == 1
}

// AnonymousAuthHook decides whether CONNECTs carrying no credentials at
// all are admitted; credentialed CONNECTs pass through for other hooks
// to judge. A refusal maps to CONNACK return code 5 (not authorized).
type AnonymousAuthHook struct {
	*Base
	allow bool
	mu    sync.RWMutex
}

func NewAnonymousAuthHook(allow bool) *AnonymousAuthHook {
	return &AnonymousAuthHook{
		Base:  NewHookBase("anonymous-auth"),
		allow: allow,
	}
}

func (h *AnonymousAuthHook) Provides(event Event) bool {
	return event == OnConnectAuthenticate
}

// SetAllowAnonymous flips the gate at runtime.
func (h *AnonymousAuthHook) SetAllowAnonymous(allow bool) {
	h.mu.Lock()
	h.allow = allow
	h.mu.Unlock()
}

// IsAnonymousAllowed reports the current gate state.
func (h *AnonymousAuthHook) IsAnonymousAllowed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allow
}

func (h *AnonymousAuthHook) OnConnectAuthenticate(_ *Client, packet *ConnectPacket) bool {
	if packet.Username != "" || packet.Password != nil {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allow
}
