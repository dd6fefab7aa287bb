// Package hook is the broker's extension seam: registered hooks observe
// or veto the lifecycle points the router core drives — authentication,
// topic ACLs, publish admission, subscription changes, will handling,
// and the periodic statistics tick. Hooks that don't care about an
// event embed Base and override only what they need.
package hook

import (
	"net"
	"time"
)

// Event identifies one interception point. A hook declares which events
// it implements via Provides, so the Manager can skip the rest.
type Event byte

const (
	OnStarted Event = iota
	OnStopped
	OnSysInfoTick
	OnConnectAuthenticate
	OnACLCheck
	OnSessionEstablished
	OnDisconnect
	OnPublish
	OnPublished
	OnPublishDropped
	OnRetainMessage
	OnSubscribe
	OnSubscribed
	OnUnsubscribe
	OnUnsubscribed
	OnWill
	OnWillSent
)

var eventNames = map[Event]string{
	OnStarted:             "OnStarted",
	OnStopped:             "OnStopped",
	OnSysInfoTick:         "OnSysInfoTick",
	OnConnectAuthenticate: "OnConnectAuthenticate",
	OnACLCheck:            "OnACLCheck",
	OnSessionEstablished:  "OnSessionEstablished",
	OnDisconnect:          "OnDisconnect",
	OnPublish:             "OnPublish",
	OnPublished:           "OnPublished",
	OnPublishDropped:      "OnPublishDropped",
	OnRetainMessage:       "OnRetainMessage",
	OnSubscribe:           "OnSubscribe",
	OnSubscribed:          "OnSubscribed",
	OnUnsubscribe:         "OnUnsubscribe",
	OnUnsubscribed:        "OnUnsubscribed",
	OnWill:                "OnWill",
	OnWillSent:            "OnWillSent",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "Unknown"
}

// Hook is implemented by every extension. Boolean results gate the
// operation (false refuses it); error results veto it; the rest are
// notifications.
type Hook interface {
	// ID uniquely names this hook within a Manager.
	ID() string

	// Provides reports whether the hook implements event.
	Provides(event Event) bool

	// Init configures the hook before first use.
	Init(config any) error

	// Stop releases hook resources.
	Stop() error

	// OnStarted fires once the broker is accepting connections.
	OnStarted() error

	// OnStopped fires after the broker shut down, with its exit error.
	OnStopped(err error) error

	// OnSysInfoTick fires on every statistics publication.
	OnSysInfoTick(info *SysInfo) error

	// OnConnectAuthenticate decides whether a CONNECT may proceed.
	// Returning false maps to CONNACK code 4 or 5.
	OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool

	// OnACLCheck gates a client's read (subscribe) or write (publish)
	// access to a topic.
	OnACLCheck(client *Client, topic string, access AccessType) bool

	// OnSessionEstablished fires after a CONNECT was accepted.
	OnSessionEstablished(client *Client, packet *ConnectPacket) error

	// OnDisconnect fires after a client's connection state is gone.
	OnDisconnect(client *Client, err error, expire bool) error

	// OnPublish gates an inbound PUBLISH; an error drops the message
	// without failing the connection.
	OnPublish(client *Client, packet *PublishPacket) error

	// OnPublished fires after a PUBLISH was accepted for routing.
	OnPublished(client *Client, packet *PublishPacket) error

	// OnPublishDropped fires when an inbound PUBLISH was discarded.
	OnPublishDropped(client *Client, packet *PublishPacket, reason DropReason) error

	// OnRetainMessage gates storing packet as a retained message.
	OnRetainMessage(client *Client, packet *PublishPacket) error

	// OnSubscribe gates one SUBSCRIBE tuple; an error answers 0x80.
	OnSubscribe(client *Client, sub *Subscription) error

	// OnSubscribed fires after a subscription was recorded.
	OnSubscribed(client *Client, sub *Subscription) error

	// OnUnsubscribe gates removing one filter.
	OnUnsubscribe(client *Client, topicFilter string) error

	// OnUnsubscribed fires after a filter was removed.
	OnUnsubscribed(client *Client, topicFilter string) error

	// OnWill may rewrite the will before publication.
	OnWill(client *Client, will *WillMessage) *WillMessage

	// OnWillSent fires after the will was routed to subscribers.
	OnWillSent(client *Client, will *WillMessage) error
}

// Client carries the connection-scoped facts hooks decide on.
type Client struct {
	ID              string
	RemoteAddr      net.Addr
	LocalAddr       net.Addr
	Username        string
	CleanSession    bool
	ProtocolVersion byte
	KeepAlive       uint16
	SessionPresent  bool
	Will            *WillMessage
	ConnectedAt     time.Time
	DisconnectedAt  time.Time
	State           ClientState
}

// ClientState tracks where a client is in its connection lifecycle.
type ClientState byte

const (
	ClientStateConnecting ClientState = iota
	ClientStateConnected
	ClientStateDisconnecting
	ClientStateDisconnected
)

// ConnectPacket is the hook-facing view of a decoded CONNECT.
type ConnectPacket struct {
	ProtocolName    string
	ProtocolVersion byte
	CleanSession    bool
	KeepAlive       uint16
	ClientID        string
	Username        string
	Password        []byte
	Will            *WillMessage
	SessionPresent  bool
}

// PublishPacket is the hook-facing view of a decoded PUBLISH.
type PublishPacket struct {
	PacketID        uint16
	Topic           string
	Payload         []byte
	QoS             byte
	Retain          bool
	Duplicate       bool
	ProtocolVersion byte
	Created         time.Time
	Origin          string
}

// Subscription names one client/filter pair being granted or removed.
type Subscription struct {
	ClientID     string
	TopicFilter  string
	QoS          byte
	SubscribedAt time.Time
}

// WillMessage is the last-will payload registered at CONNECT time.
type WillMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// SysInfo is a point-in-time snapshot of the broker counters, published
// on the $SYS tree and handed to OnSysInfoTick.
type SysInfo struct {
	Uptime              int64
	Version             string
	Started             time.Time
	Time                time.Time
	ClientsConnected    int64
	ClientsTotal        int64
	ClientsMaximum      int64
	ClientsDisconnected int64
	MessagesReceived    int64
	MessagesSent        int64
	MessagesDropped     int64
	Subscriptions       int64
	Retained            int64
	Inflight            int64
	MemoryAlloc         uint64
	Threads             int
}

// AccessType distinguishes subscribe-side from publish-side ACL checks.
type AccessType byte

const (
	AccessTypeRead AccessType = iota
	AccessTypeWrite
)

// DropReason says why an inbound PUBLISH was discarded.
type DropReason byte

const (
	DropReasonACLDenied DropReason = iota
	DropReasonQuotaExceeded
	DropReasonQueueFull
	DropReasonInternalError
)

func (d DropReason) String() string {
	switch d {
	case DropReasonACLDenied:
		return "acl_denied"
	case DropReasonQuotaExceeded:
		return "quota_exceeded"
	case DropReasonQueueFull:
		return "queue_full"
	case DropReasonInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}
