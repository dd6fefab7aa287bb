package hook

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHook counts invocations and can be told to veto gates.
type recordingHook struct {
	*Base
	provides map[Event]bool

	mu       sync.Mutex
	calls    map[string]int
	authOK   bool
	aclOK    bool
	gateErr  error
	willSwap *WillMessage
	stopped  bool
}

func newRecordingHook(id string, events ...Event) *recordingHook {
	provides := make(map[Event]bool, len(events))
	for _, e := range events {
		provides[e] = true
	}
	return &recordingHook{
		Base:     NewHookBase(id),
		provides: provides,
		calls:    make(map[string]int),
		authOK:   true,
		aclOK:    true,
	}
}

func (h *recordingHook) Provides(event Event) bool { return h.provides[event] }

func (h *recordingHook) bump(name string) {
	h.mu.Lock()
	h.calls[name]++
	h.mu.Unlock()
}

func (h *recordingHook) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func (h *recordingHook) Stop() error { h.stopped = true; return nil }

func (h *recordingHook) OnStarted() error             { h.bump("OnStarted"); return nil }
func (h *recordingHook) OnStopped(error) error        { h.bump("OnStopped"); return nil }
func (h *recordingHook) OnSysInfoTick(*SysInfo) error { h.bump("OnSysInfoTick"); return nil }

func (h *recordingHook) OnConnectAuthenticate(*Client, *ConnectPacket) bool {
	h.bump("OnConnectAuthenticate")
	return h.authOK
}

func (h *recordingHook) OnACLCheck(*Client, string, AccessType) bool {
	h.bump("OnACLCheck")
	return h.aclOK
}

func (h *recordingHook) OnSessionEstablished(*Client, *ConnectPacket) error {
	h.bump("OnSessionEstablished")
	return h.gateErr
}

func (h *recordingHook) OnDisconnect(*Client, error, bool) error {
	h.bump("OnDisconnect")
	return nil
}

func (h *recordingHook) OnPublish(*Client, *PublishPacket) error {
	h.bump("OnPublish")
	return h.gateErr
}

func (h *recordingHook) OnPublished(*Client, *PublishPacket) error {
	h.bump("OnPublished")
	return nil
}

func (h *recordingHook) OnPublishDropped(*Client, *PublishPacket, DropReason) error {
	h.bump("OnPublishDropped")
	return nil
}

func (h *recordingHook) OnSubscribe(*Client, *Subscription) error {
	h.bump("OnSubscribe")
	return h.gateErr
}

func (h *recordingHook) OnWill(_ *Client, w *WillMessage) *WillMessage {
	h.bump("OnWill")
	if h.willSwap != nil {
		return h.willSwap
	}
	return w
}

func TestManagerAddAndLen(t *testing.T) {
	m := NewManager()
	assert.Equal(t, 0, m.Len())

	require.NoError(t, m.Add(newRecordingHook("a")))
	require.NoError(t, m.Add(newRecordingHook("b")))
	assert.Equal(t, 2, m.Len())
}

func TestManagerAddRejectsDuplicateID(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(newRecordingHook("dup")))

	err := m.Add(newRecordingHook("dup"))
	assert.ErrorIs(t, err, ErrHookAlreadyExists)
}

func TestManagerAddRejectsEmptyID(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.Add(newRecordingHook("")), ErrEmptyHookID)
	assert.ErrorIs(t, m.Add(nil), ErrEmptyHookID)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("gone")
	require.NoError(t, m.Add(h))

	require.NoError(t, m.Remove("gone"))
	assert.Equal(t, 0, m.Len())
	assert.True(t, h.stopped, "Remove must stop the hook")

	assert.ErrorIs(t, m.Remove("gone"), ErrHookNotFound)
}

func TestManagerGet(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(newRecordingHook("findme")))

	h, ok := m.Get("findme")
	require.True(t, ok)
	assert.Equal(t, "findme", h.ID())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManagerDispatchSkipsNonProviders(t *testing.T) {
	m := NewManager()
	providing := newRecordingHook("yes", OnPublish)
	silent := newRecordingHook("no")
	require.NoError(t, m.Add(providing))
	require.NoError(t, m.Add(silent))

	require.NoError(t, m.OnPublish(&Client{ID: "c1"}, &PublishPacket{}))

	assert.Equal(t, 1, providing.count("OnPublish"))
	assert.Equal(t, 0, silent.count("OnPublish"))
}

func TestManagerAuthenticateFirstVetoWins(t *testing.T) {
	m := NewManager()
	h1 := newRecordingHook("allow", OnConnectAuthenticate)
	h2 := newRecordingHook("deny", OnConnectAuthenticate)
	h2.authOK = false
	require.NoError(t, m.Add(h1))
	require.NoError(t, m.Add(h2))

	ok := m.OnConnectAuthenticate(&Client{}, &ConnectPacket{})
	assert.False(t, ok)
	assert.Equal(t, 1, h1.count("OnConnectAuthenticate"))
	assert.Equal(t, 1, h2.count("OnConnectAuthenticate"))
}

func TestManagerAuthenticateNoHooksDefaultsOpen(t *testing.T) {
	m := NewManager()
	assert.True(t, m.OnConnectAuthenticate(&Client{}, &ConnectPacket{}))
	assert.True(t, m.OnACLCheck(&Client{}, "a/b", AccessTypeWrite))
}

func TestManagerACLCheckVeto(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("acl", OnACLCheck)
	h.aclOK = false
	require.NoError(t, m.Add(h))

	assert.False(t, m.OnACLCheck(&Client{}, "a/b", AccessTypeRead))
}

func TestManagerPublishGateError(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("limit", OnPublish)
	h.gateErr = errors.New("over budget")
	require.NoError(t, m.Add(h))

	err := m.OnPublish(&Client{}, &PublishPacket{})
	assert.Error(t, err)
}

func TestManagerSubscribeGateError(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("subgate", OnSubscribe)
	h.gateErr = errors.New("refused")
	require.NoError(t, m.Add(h))

	assert.Error(t, m.OnSubscribe(&Client{}, &Subscription{TopicFilter: "a/#"}))
}

func TestManagerOnWillRewrite(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("rewrite", OnWill)
	h.willSwap = &WillMessage{Topic: "redirected", Payload: []byte("x")}
	require.NoError(t, m.Add(h))

	out := m.OnWill(&Client{}, &WillMessage{Topic: "original"})
	require.NotNil(t, out)
	assert.Equal(t, "redirected", out.Topic)
}

func TestManagerOnWillDefaultPassthrough(t *testing.T) {
	m := NewManager()
	will := &WillMessage{Topic: "bye"}
	assert.Same(t, will, m.OnWill(&Client{}, will))
}

func TestManagerNotifications(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("notify", OnStarted, OnStopped, OnSysInfoTick, OnDisconnect, OnPublished, OnPublishDropped)
	require.NoError(t, m.Add(h))

	m.OnStarted()
	m.OnStopped(nil)
	m.OnSysInfoTick(&SysInfo{})
	m.OnDisconnect(&Client{}, nil, false)
	m.OnPublished(&Client{}, &PublishPacket{})
	m.OnPublishDropped(&Client{}, &PublishPacket{}, DropReasonQuotaExceeded)

	for _, name := range []string{"OnStarted", "OnStopped", "OnSysInfoTick", "OnDisconnect", "OnPublished", "OnPublishDropped"} {
		assert.Equal(t, 1, h.count(name), name)
	}
}

func TestManagerStopStopsAll(t *testing.T) {
	m := NewManager()
	h1 := newRecordingHook("one")
	h2 := newRecordingHook("two")
	require.NoError(t, m.Add(h1))
	require.NoError(t, m.Add(h2))

	m.Stop()

	assert.True(t, h1.stopped)
	assert.True(t, h2.stopped)
	assert.Equal(t, 0, m.Len())
}

func TestManagerConcurrentDispatch(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("conc", OnPublish, OnACLCheck)
	require.NoError(t, m.Add(h))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.OnPublish(&Client{ID: "c"}, &PublishPacket{})
			_ = m.OnACLCheck(&Client{ID: "c"}, "a/b", AccessTypeWrite)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, h.count("OnPublish"))
	assert.Equal(t, 50, h.count("OnACLCheck"))
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "OnConnectAuthenticate", OnConnectAuthenticate.String())
	assert.Equal(t, "OnWillSent", OnWillSent.String())
	assert.Equal(t, "Unknown", Event(200).String())
}
