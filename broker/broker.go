// Package broker turns decoded MQTT 3.1.1 packets into protocol responses.
// It is the router/handler core: it drives session.Manager for client
// lifecycle, topic.Router for subscription matching, and qos.Handler for
// QoS 1/2 delivery guarantees, and is the only package that touches all
// three.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/axmq/axbroker/encoding"
	"github.com/axmq/axbroker/hook"
	"github.com/axmq/axbroker/qos"
	"github.com/axmq/axbroker/session"
	"github.com/axmq/axbroker/topic"
	"github.com/axmq/axbroker/types/message"
)

var (
	ErrClientNotFound     = errors.New("broker: client not found")
	ErrNotConnected       = errors.New("broker: client not connected")
	ErrAlreadyClosed      = errors.New("broker: already closed")
	ErrProtocolVersion    = errors.New("broker: unsupported protocol version")
	ErrNotAuthorized      = errors.New("broker: connection not authorized")
	ErrIdentifierRejected = errors.New("broker: client identifier rejected")
)

// Sender writes an encoded packet to a specific client's connection.
type Sender func(pkt encoding.Packet) error

// Config configures a Broker.
type Config struct {
	SessionStore   session.Store
	QoSConfig      *qos.Config
	Hooks          *hook.Manager
	AllowAnonymous bool
	MaxInflight    uint16
}

// Broker is the C6 router/handler core: it consumes decoded packets from
// the encoding package and produces CONNACK/PUBACK/SUBACK/UNSUBACK/PINGRESP
// and routed outbound PUBLISH packets.
type Broker struct {
	sessions *session.Manager
	router   *topic.Router
	retained *topic.RetainedManager
	qosCfg   *qos.Config
	hooks    *hook.Manager
	stats    *Stats

	allowAnonymous bool

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// client holds everything the broker tracks for one connected session.
type client struct {
	id     string
	send   Sender
	proto  byte
	mu     sync.Mutex
	closed bool

	// inboundQoS tracks QoS 2 dedup/handshake state for PUBLISH packets
	// this client sends to the broker. Its onPublish callback fans the
	// message out to subscribers; it never retries since retransmission
	// of an unacknowledged inbound PUBLISH is the sending peer's job.
	inboundQoS *qos.Handler

	// outboundQoS tracks PUBLISH packets the broker sends to this client
	// as a subscriber. Its onPublish callback writes the wire frame and
	// it owns the retransmit-interval-ms retry loop for this client.
	outboundQoS *qos.Handler
}

// NewBroker constructs a Broker. Unset fields of cfg fall back to an
// in-memory session store and default QoS/retained-message settings.
func NewBroker(cfg Config) *Broker {
	if cfg.SessionStore == nil {
		cfg.SessionStore = session.NewMemoryStore()
	}
	if cfg.QoSConfig == nil {
		cfg.QoSConfig = qos.DefaultConfig()
	}
	if cfg.MaxInflight > 0 {
		cfg.QoSConfig.MaxInflight = cfg.MaxInflight
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hook.NewManager()
	}

	b := &Broker{
		router:         topic.NewRouter(),
		qosCfg:         cfg.QoSConfig,
		hooks:          cfg.Hooks,
		stats:          newStats(),
		clients:        make(map[string]*client),
		allowAnonymous: cfg.AllowAnonymous,
	}

	b.retained = topic.NewRetainedManager()

	b.sessions = session.NewManager(session.ManagerConfig{
		Store:         cfg.SessionStore,
		WillPublisher: willPublisherFunc(b.publishWill),
	})

	return b
}

type willPublisherFunc func(ctx context.Context, will *session.WillMessage, clientID string) error

func (f willPublisherFunc) PublishWill(ctx context.Context, will *session.WillMessage, clientID string) error {
	return f(ctx, will, clientID)
}

func (b *Broker) publishWill(ctx context.Context, will *session.WillMessage, clientID string) error {
	if will == nil {
		return nil
	}

	hookClient := &hook.Client{ID: clientID, State: hook.ClientStateDisconnected}
	hookWill := b.hooks.OnWill(hookClient, &hook.WillMessage{
		Topic:   will.Topic,
		Payload: will.Payload,
		QoS:     will.QoS,
		Retain:  will.Retain,
	})
	if hookWill == nil {
		return nil
	}

	if hookWill.Retain {
		msg := message.NewMessage(0, hookWill.Topic, hookWill.Payload, encoding.QoS(hookWill.QoS), true)
		_ = b.retained.Set(ctx, hookWill.Topic, msg)
	}

	if err := b.fanOut(ctx, hookWill.Topic, hookWill.Payload, hookWill.QoS); err != nil {
		return err
	}
	b.hooks.OnWillSent(hookClient, hookWill)
	return nil
}

// Connect handles a decoded CONNECT packet: it resolves the client ID,
// authenticates through the hook chain (when AllowAnonymous is false, a
// blank username/password is rejected), creates or resumes the session,
// and wires this client's QoS handlers to the given Sender. It returns
// the CONNACK to write back.
func (b *Broker) Connect(ctx context.Context, pkt *encoding.ConnectPacket311, send Sender) (string, *encoding.ConnackPacket311, error) {
	if pkt.ProtocolVersion != encoding.ProtocolVersion311 {
		return "", &encoding.ConnackPacket311{ReturnCode: connackRefusedProtocolVersion}, ErrProtocolVersion
	}

	// An empty client ID is only acceptable together with a clean
	// session; without one the broker has no stable key to resume
	// state under (MQTT 3.1.1 §3.1.3.7).
	if pkt.ClientID == "" && !pkt.CleanSession {
		return "", &encoding.ConnackPacket311{ReturnCode: connackRefusedIdentifierRejected}, ErrIdentifierRejected
	}

	if !b.allowAnonymous && !pkt.UsernameFlag {
		return "", &encoding.ConnackPacket311{ReturnCode: connackRefusedNotAuthorized}, ErrNotAuthorized
	}

	hookClient := &hook.Client{
		ID:              pkt.ClientID,
		Username:        pkt.Username,
		CleanSession:    pkt.CleanSession,
		ProtocolVersion: byte(pkt.ProtocolVersion),
		KeepAlive:       pkt.KeepAlive,
		State:           hook.ClientStateConnecting,
	}
	hookConnect := &hook.ConnectPacket{
		ProtocolName:    pkt.ProtocolName,
		ProtocolVersion: byte(pkt.ProtocolVersion),
		CleanSession:    pkt.CleanSession,
		KeepAlive:       pkt.KeepAlive,
		ClientID:        pkt.ClientID,
		Username:        pkt.Username,
		Password:        pkt.Password,
	}
	if pkt.WillFlag {
		hookConnect.Will = &hook.WillMessage{
			Topic:   pkt.WillTopic,
			Payload: pkt.WillPayload,
			QoS:     byte(pkt.WillQoS),
			Retain:  pkt.WillRetain,
		}
	}

	if !b.hooks.OnConnectAuthenticate(hookClient, hookConnect) {
		code := byte(connackRefusedNotAuthorized)
		if pkt.UsernameFlag {
			code = connackRefusedBadUserOrPassword
		}
		return "", &encoding.ConnackPacket311{ReturnCode: code}, ErrNotAuthorized
	}

	clientID := pkt.ClientID
	assignedID := false
	if clientID == "" {
		id, err := b.sessions.GenerateClientID(ctx)
		if err != nil {
			return "", &encoding.ConnackPacket311{ReturnCode: connackRefusedServerUnavailable}, err
		}
		clientID = id
		assignedID = true
	}

	if !assignedID {
		// A new network connection using the same ClientID replaces any
		// existing connection for that ID (MQTT 3.1.1 §3.1.3.1).
		if err := b.sessions.TakeoverSession(ctx, clientID); err != nil {
			return "", &encoding.ConnackPacket311{ReturnCode: connackRefusedServerUnavailable}, err
		}
		b.disconnectClient(clientID)
	}

	sess, present, err := b.sessions.CreateSession(ctx, clientID, pkt.CleanSession, 0, byte(pkt.ProtocolVersion))
	if err != nil {
		return "", &encoding.ConnackPacket311{ReturnCode: connackRefusedServerUnavailable}, err
	}

	if pkt.WillFlag {
		sess.SetWillMessage(&session.WillMessage{
			Topic:   pkt.WillTopic,
			Payload: pkt.WillPayload,
			QoS:     byte(pkt.WillQoS),
			Retain:  pkt.WillRetain,
		})
	}

	c := &client{id: clientID, send: send, proto: byte(pkt.ProtocolVersion)}
	c.inboundQoS = qos.NewHandler(b.qosCfg)
	c.inboundQoS.SetPublishCallback(func(msg *message.Message) error {
		return b.fanOut(context.Background(), msg.Topic, msg.Payload, byte(msg.QoS))
	})

	c.outboundQoS = qos.NewHandler(b.qosCfg)
	c.outboundQoS.SetPublishCallback(func(msg *message.Message) error {
		return send(&encoding.PublishPacket311{
			FixedHeader: encoding.FixedHeader{
				Type: encoding.PUBLISH,
				DUP:  msg.DUP,
				QoS:  msg.QoS,
			},
			TopicName: msg.Topic,
			PacketID:  msg.PacketID,
			Payload:   msg.Payload,
		})
	})
	c.outboundQoS.SetPubrelCallback(func(packetID uint16) error {
		return send(&encoding.PubrelPacket311{FixedHeader: encoding.FixedHeader{Type: encoding.PUBREL, Flags: 0x02}, PacketID: packetID})
	})

	c.inboundQoS.SetPubrecCallback(func(packetID uint16) error {
		return send(&encoding.PubrecPacket311{FixedHeader: encoding.FixedHeader{Type: encoding.PUBREC}, PacketID: packetID})
	})
	c.inboundQoS.SetPubrelCallback(func(packetID uint16) error { return nil })
	c.inboundQoS.SetPubcompCallback(func(packetID uint16) error {
		return send(&encoding.PubcompPacket311{FixedHeader: encoding.FixedHeader{Type: encoding.PUBCOMP}, PacketID: packetID})
	})
	c.inboundQoS.SetPubackCallback(func(packetID uint16) error {
		return send(&encoding.PubackPacket311{FixedHeader: encoding.FixedHeader{Type: encoding.PUBACK}, PacketID: packetID})
	})

	b.mu.Lock()
	if old, ok := b.clients[clientID]; ok {
		old.closeQoS()
	}
	b.clients[clientID] = c
	b.mu.Unlock()

	if present && !pkt.CleanSession {
		restoreInflight(sess, c)
	}

	b.stats.connectClient()

	hookClient.ID = clientID
	hookClient.State = hook.ClientStateConnected
	hookClient.SessionPresent = present && !pkt.CleanSession
	_ = b.hooks.OnSessionEstablished(hookClient, hookConnect)

	return clientID, &encoding.ConnackPacket311{
		SessionPresent: present && !pkt.CleanSession,
		ReturnCode:     connackAccepted,
	}, nil
}

// Publish handles a decoded PUBLISH from clientID. For QoS 0 it fans the
// message out immediately; for QoS 1/2 it is routed through that client's
// inbound QoS handler, which sends PUBACK/PUBREC itself via the Sender
// wired in Connect, then fans the message out once delivery is confirmed.
func (b *Broker) Publish(ctx context.Context, clientID string, pkt *encoding.PublishPacket311) error {
	c, err := b.client(clientID)
	if err != nil {
		return err
	}

	b.stats.MessagesReceived.Add(1)

	fh := pkt.FixedHeader
	hookPub := &hook.PublishPacket{
		PacketID:  pkt.PacketID,
		Topic:     pkt.TopicName,
		Payload:   pkt.Payload,
		QoS:       byte(fh.QoS),
		Retain:    fh.Retain,
		Duplicate: fh.DUP,
		Origin:    clientID,
	}
	hookClient := &hook.Client{ID: clientID}

	if !b.hooks.OnACLCheck(hookClient, pkt.TopicName, hook.AccessTypeWrite) {
		b.stats.MessagesDropped.Add(1)
		b.hooks.OnPublishDropped(hookClient, hookPub, hook.DropReasonACLDenied)
		return nil
	}
	if err := b.hooks.OnPublish(hookClient, hookPub); err != nil {
		b.stats.MessagesDropped.Add(1)
		b.hooks.OnPublishDropped(hookClient, hookPub, hook.DropReasonQuotaExceeded)
		return nil
	}

	if fh.Retain {
		if len(pkt.Payload) == 0 {
			_ = b.retained.Delete(ctx, pkt.TopicName)
		} else {
			msg := message.NewMessage(pkt.PacketID, pkt.TopicName, pkt.Payload, fh.QoS, true)
			if err := b.hooks.OnRetainMessage(hookClient, hookPub); err == nil {
				_ = b.retained.Set(ctx, pkt.TopicName, msg)
			}
		}
	}

	msg := message.NewMessage(pkt.PacketID, pkt.TopicName, pkt.Payload, fh.QoS, fh.Retain)
	msg.DUP = fh.DUP
	if err := c.inboundQoS.HandlePublish(msg); err != nil {
		return err
	}
	b.hooks.OnPublished(hookClient, hookPub)
	return nil
}

// fanOut delivers a published message to every subscriber whose filter
// matches topic, picking the minimum of the publisher's and subscriber's
// QoS per MQTT 3.1.1 §3.3.5.
func (b *Broker) fanOut(ctx context.Context, topicName string, payload []byte, pubQoS byte) error {
	subs := b.router.Match(topicName)

	var firstErr error
	for _, sub := range subs {
		deliverQoS := sub.QoS
		if pubQoS < deliverQoS {
			deliverQoS = pubQoS
		}

		target, err := b.client(sub.ClientID)
		if err != nil {
			b.stats.MessagesDropped.Add(1)
			continue
		}

		if err := b.deliver(target, topicName, payload, encoding.QoS(deliverQoS), false); err != nil {
			b.stats.MessagesDropped.Add(1)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		b.stats.MessagesSent.Add(1)
	}

	return firstErr
}

// publishRetainedSys stores and fans out one $SYS statistic as a retained
// QoS 0 publish originating from the broker itself.
func (b *Broker) publishRetainedSys(ctx context.Context, topicName string, payload []byte) error {
	msg := message.NewMessage(0, topicName, payload, encoding.QoS0, true)
	if err := b.retained.Set(ctx, topicName, msg); err != nil {
		return err
	}
	return b.fanOut(ctx, topicName, payload, byte(encoding.QoS0))
}

func (b *Broker) deliver(c *client, topicName string, payload []byte, qosLevel encoding.QoS, retain bool) error {
	switch qosLevel {
	case encoding.QoS0:
		return c.send(&encoding.PublishPacket311{
			FixedHeader: encoding.FixedHeader{Type: encoding.PUBLISH, QoS: encoding.QoS0, Retain: retain},
			TopicName:   topicName,
			Payload:     payload,
		})
	case encoding.QoS1:
		_, err := c.outboundQoS.PublishQoS1(topicName, payload, retain)
		return err
	case encoding.QoS2:
		_, err := c.outboundQoS.PublishQoS2(topicName, payload, retain)
		return err
	default:
		return qos.ErrInvalidQoS
	}
}

// Subscribe handles a decoded SUBSCRIBE packet, returning the matching
// SUBACK. It also delivers any retained messages matching each filter.
func (b *Broker) Subscribe(ctx context.Context, clientID string, pkt *encoding.SubscribePacket311) (*encoding.SubackPacket311, error) {
	c, err := b.client(clientID)
	if err != nil {
		return nil, err
	}

	hookClient := &hook.Client{ID: clientID}

	returnCodes := make([]byte, len(pkt.Subscriptions))
	for i, s := range pkt.Subscriptions {
		if err := topic.ValidateTopicFilter(s.TopicFilter); err != nil {
			returnCodes[i] = subackFailure
			continue
		}

		hookSub := &hook.Subscription{ClientID: clientID, TopicFilter: s.TopicFilter, QoS: byte(s.QoS)}
		if !b.hooks.OnACLCheck(hookClient, s.TopicFilter, hook.AccessTypeRead) {
			returnCodes[i] = subackFailure
			continue
		}
		if err := b.hooks.OnSubscribe(hookClient, hookSub); err != nil {
			returnCodes[i] = subackFailure
			continue
		}

		_, existed := b.router.GetSubscription(clientID, s.TopicFilter)
		if err := b.router.Subscribe(&topic.Subscription{ClientID: clientID, TopicFilter: s.TopicFilter, QoS: byte(s.QoS)}); err != nil {
			returnCodes[i] = subackFailure
			continue
		}
		if !existed {
			b.stats.SubscriptionsActive.Add(1)
		}
		b.hooks.OnSubscribed(hookClient, hookSub)
		returnCodes[i] = byte(s.QoS)

		retainedMsgs, err := b.retained.Match(ctx, s.TopicFilter)
		if err == nil {
			for _, msg := range retainedMsgs {
				deliverQoS := byte(s.QoS)
				if byte(msg.QoS) < deliverQoS {
					deliverQoS = byte(msg.QoS)
				}
				_ = b.deliver(c, msg.Topic, msg.Payload, encoding.QoS(deliverQoS), true)
			}
		}
	}

	return &encoding.SubackPacket311{PacketID: pkt.PacketID, ReturnCodes: returnCodes}, nil
}

// Unsubscribe handles a decoded UNSUBSCRIBE packet, returning the UNSUBACK.
func (b *Broker) Unsubscribe(ctx context.Context, clientID string, pkt *encoding.UnsubscribePacket311) (*encoding.UnsubackPacket311, error) {
	if _, err := b.client(clientID); err != nil {
		return nil, err
	}

	hookClient := &hook.Client{ID: clientID}
	for _, filter := range pkt.TopicFilters {
		if err := b.hooks.OnUnsubscribe(hookClient, filter); err != nil {
			continue
		}
		if b.router.Unsubscribe(clientID, filter) {
			b.stats.SubscriptionsActive.Add(-1)
		}
		b.hooks.OnUnsubscribed(hookClient, filter)
	}

	return &encoding.UnsubackPacket311{PacketID: pkt.PacketID}, nil
}

// Puback handles a decoded PUBACK, completing an outbound QoS 1 delivery.
func (b *Broker) Puback(clientID string, packetID uint16) error {
	c, err := b.client(clientID)
	if err != nil {
		return err
	}
	return c.outboundQoS.HandlePuback(packetID)
}

// Pubrec handles a decoded PUBREC, continuing an outbound QoS 2 delivery.
func (b *Broker) Pubrec(clientID string, packetID uint16) error {
	c, err := b.client(clientID)
	if err != nil {
		return err
	}
	return c.outboundQoS.HandlePubrec(packetID)
}

// Pubrel handles a decoded PUBREL, continuing an inbound QoS 2 receive.
func (b *Broker) Pubrel(clientID string, packetID uint16) error {
	c, err := b.client(clientID)
	if err != nil {
		return err
	}
	return c.inboundQoS.HandlePubrel(packetID)
}

// Pubcomp handles a decoded PUBCOMP, completing an outbound QoS 2 delivery.
func (b *Broker) Pubcomp(clientID string, packetID uint16) error {
	c, err := b.client(clientID)
	if err != nil {
		return err
	}
	return c.outboundQoS.HandlePubcomp(packetID)
}

// Pingreq handles a decoded PINGREQ, returning the PINGRESP to write back.
// The broker never initiates PINGREQ itself (§4.4) — this is the only
// direction ping traffic flows.
func (b *Broker) Pingreq(clientID string) (*encoding.PingrespPacket, error) {
	if _, err := b.client(clientID); err != nil {
		return nil, err
	}
	return &encoding.PingrespPacket{FixedHeader: encoding.FixedHeader{Type: encoding.PINGRESP}}, nil
}

// Disconnect handles a graceful DISCONNECT: the will message (if any) is
// discarded per §3.14.4, and the session is torn down or persisted
// depending on CleanSession.
func (b *Broker) Disconnect(ctx context.Context, clientID string) error {
	return b.teardown(ctx, clientID, false, nil)
}

// DisconnectNetworkFailure tears down clientID's connection state as an
// ungraceful network failure: unlike Disconnect, the will message (if
// any) is published. This is the path the C7 adaptor and the keep-alive
// watchdog take when a connection drops without a DISCONNECT packet.
func (b *Broker) DisconnectNetworkFailure(ctx context.Context, clientID string) error {
	return b.teardown(ctx, clientID, true, ErrNotConnected)
}

func (b *Broker) teardown(ctx context.Context, clientID string, sendWill bool, cause error) error {
	sess, sessErr := b.sessions.GetSession(ctx, clientID)

	b.disconnectClient(clientID)

	err := b.sessions.DisconnectSession(ctx, clientID, sendWill)

	// Clean sessions take their subscriptions with them; the tree must
	// not keep routing to a client that no longer exists.
	if sessErr == nil && sess.GetCleanSession() {
		removed := b.router.UnsubscribeAll(clientID)
		b.stats.SubscriptionsActive.Add(int64(-removed))
	}

	b.hooks.OnDisconnect(&hook.Client{ID: clientID, State: hook.ClientStateDisconnected}, cause, sessErr == nil && sess.GetCleanSession())
	return err
}

func (b *Broker) disconnectClient(clientID string) {
	b.mu.Lock()
	c, ok := b.clients[clientID]
	if ok {
		delete(b.clients, clientID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}

	// Persistent sessions keep their inflight set across connections:
	// snapshot it into the session before the handlers close.
	if sess, err := b.sessions.GetSession(context.Background(), clientID); err == nil && !sess.GetCleanSession() {
		snapshotInflight(sess, c)
	}

	c.closeQoS()
	b.stats.disconnectClient()
}

// snapshotInflight copies the client's live QoS state into its session,
// so the next CONNECT with clean-session=0 resumes mid-handshake
// deliveries.
func snapshotInflight(sess *session.Session, c *client) {
	outbound, awaitingComp, _ := c.outboundQoS.PendingSnapshot()
	for _, msg := range outbound {
		sess.AddPendingPublish(&session.PendingMessage{
			PacketID:  msg.PacketID,
			Topic:     msg.Topic,
			Payload:   msg.Payload,
			QoS:       byte(msg.QoS),
			Retain:    msg.Retain,
			DUP:       msg.DUP,
			Timestamp: msg.LastAttemptAt,
		})
	}
	for _, id := range awaitingComp {
		sess.AddPendingPubcomp(id)
	}

	_, _, received := c.inboundQoS.PendingSnapshot()
	for _, id := range received {
		sess.AddPendingPubrel(id)
	}
}

// restoreInflight seeds a resumed connection's QoS handlers from the
// session snapshot taken at the previous disconnect, then drains the
// snapshot so acknowledged entries cannot reappear on a later resume.
func restoreInflight(sess *session.Session, c *client) {
	for id, pending := range sess.GetAllPendingPublish() {
		msg := &message.Message{
			PacketID:      id,
			Topic:         pending.Topic,
			Payload:       pending.Payload,
			QoS:           encoding.QoS(pending.QoS),
			Retain:        pending.Retain,
			DUP:           true,
			CreatedAt:     pending.Timestamp,
			LastAttemptAt: pending.Timestamp,
			AttemptCount:  1,
		}
		if err := c.outboundQoS.RestoreInflight(msg); err == nil {
			sess.RemovePendingPublish(id)
		}
	}
	for _, id := range sess.GetAllPendingPubcomp() {
		c.outboundQoS.RestoreAwaitingPubcomp(id)
		sess.RemovePendingPubcomp(id)
	}
	for _, id := range sess.GetAllPendingPubrel() {
		c.inboundQoS.RestoreReceived(id)
		sess.RemovePendingPubrel(id)
	}
}

func (c *client) closeQoS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.inboundQoS.Close()
	_ = c.outboundQoS.Close()
}

func (b *Broker) client(clientID string) (*client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	return c, nil
}

// Close shuts down the broker: all client QoS handlers, the session
// manager, and the retained-message store.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrAlreadyClosed
	}
	b.closed = true
	clients := b.clients
	b.clients = make(map[string]*client)
	b.mu.Unlock()

	for _, c := range clients {
		c.closeQoS()
	}

	_ = b.retained.Close()
	return b.sessions.Close()
}

// CONNACK return codes (MQTT 3.1.1 §3.2.2.3).
const (
	connackAccepted                  = 0x00
	connackRefusedProtocolVersion    = 0x01
	connackRefusedIdentifierRejected = 0x02
	connackRefusedServerUnavailable  = 0x03
	connackRefusedBadUserOrPassword  = 0x04
	connackRefusedNotAuthorized      = 0x05
)

// subackFailure is the SUBACK return code for a filter the broker refused.
const subackFailure = 0x80
