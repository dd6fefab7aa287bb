package hook

// Base is a no-op Hook. Concrete hooks embed it and override only the
// events they declare through Provides.
type Base struct {
	id string
}

// NewHookBase creates a Base carrying the given ID.
func NewHookBase(id string) *Base {
	return &Base{id: id}
}

func (h *Base) ID() string                   { return h.id }
func (h *Base) Provides(Event) bool          { return false }
func (h *Base) Init(any) error               { return nil }
func (h *Base) Stop() error                  { return nil }
func (h *Base) OnStarted() error             { return nil }
func (h *Base) OnStopped(error) error        { return nil }
func (h *Base) OnSysInfoTick(*SysInfo) error { return nil }

func (h *Base) OnConnectAuthenticate(*Client, *ConnectPacket) bool { return true }
func (h *Base) OnACLCheck(*Client, string, AccessType) bool        { return true }
func (h *Base) OnSessionEstablished(*Client, *ConnectPacket) error { return nil }
func (h *Base) OnDisconnect(*Client, error, bool) error            { return nil }

func (h *Base) OnPublish(*Client, *PublishPacket) error                    { return nil }
func (h *Base) OnPublished(*Client, *PublishPacket) error                  { return nil }
func (h *Base) OnPublishDropped(*Client, *PublishPacket, DropReason) error { return nil }
func (h *Base) OnRetainMessage(*Client, *PublishPacket) error              { return nil }

func (h *Base) OnSubscribe(*Client, *Subscription) error   { return nil }
func (h *Base) OnSubscribed(*Client, *Subscription) error  { return nil }
func (h *Base) OnUnsubscribe(*Client, string) error        { return nil }
func (h *Base) OnUnsubscribed(*Client, string) error       { return nil }
func (h *Base) OnWillSent(*Client, *WillMessage) error     { return nil }

func (h *Base) OnWill(_ *Client, w *WillMessage) *WillMessage { return w }
