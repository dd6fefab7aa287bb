package network

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/axmq/axbroker/broker"
	"github.com/axmq/axbroker/encoding"
	"github.com/axmq/axbroker/qos"
)

// ServeOptions carries the per-broker knobs Serve applies to every
// connection: the decode-side packet size cap and the keep-alive grace
// multiplier.
type ServeOptions struct {
	MaxPacketBytes uint32
	KeepAliveGrace float64
}

func DefaultServeOptions() *ServeOptions {
	return &ServeOptions{
		MaxPacketBytes: encoding.DefaultMaxPacketBytes,
		KeepAliveGrace: keepAliveDeadlineMultiplier,
	}
}

// Serve is the C7 external I/O adaptor: it owns one accepted connection end
// to end. It reads the CONNECT packet, hands it to the broker, then loops
// reading further packets off conn's byte stream — buffered so a read only
// blocks for more bytes once a full packet can't yet be parsed — decoding
// each with encoding.ReadPacketLimit and routing it into the
// broker (C6), which is the only package that knows what a PUBLISH or
// SUBSCRIBE means. Serve returns once the connection ends, by DISCONNECT,
// protocol error, or network failure.
//
// The keep-alive watchdog is built here, per connection, from the interval
// the client actually negotiated in CONNECT — it must never share a config
// with other connections, since each client may ask for a different
// interval (or ask for none at all).
func Serve(ctx context.Context, conn *Connection, b *broker.Broker, opts *ServeOptions) error {
	if opts == nil {
		opts = DefaultServeOptions()
	}
	maxPacket := opts.MaxPacketBytes
	if maxPacket == 0 {
		maxPacket = encoding.DefaultMaxPacketBytes
	}

	reader := bufio.NewReaderSize(conn, 4096)

	first, err := encoding.ReadPacketLimit(reader, maxPacket)
	if err != nil {
		return err
	}
	connectPkt, ok := first.(*encoding.ConnectPacket311)
	if !ok {
		return encoding.ErrProtocolViolation
	}

	clientID, ack, err := b.Connect(ctx, connectPkt, senderFor(conn))
	if werr := writePacket(conn, ack); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	ka := NewKeepAlive(conn, &KeepAliveConfig{
		Interval: time.Duration(connectPkt.KeepAlive) * time.Second,
		Grace:    opts.KeepAliveGrace,
		DeadlineHandler: func(c *Connection) error {
			return b.DisconnectNetworkFailure(ctx, clientID)
		},
	})
	ka.Start()
	defer ka.Stop()

	for {
		pkt, err := encoding.ReadPacketLimit(reader, maxPacket)
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = b.DisconnectNetworkFailure(ctx, clientID)
				return nil
			}
			_ = b.DisconnectNetworkFailure(ctx, clientID)
			return err
		}

		ka.OnActivity()

		if done, err := dispatch(ctx, b, clientID, conn, pkt); done {
			return err
		} else if err != nil {
			return err
		}
	}
}

// dispatch routes one decoded packet to the broker and writes back
// whatever response (if any) the broker produced. It reports done=true
// once the connection should be torn down (DISCONNECT or a fatal error).
func dispatch(ctx context.Context, b *broker.Broker, clientID string, conn *Connection, pkt encoding.Packet) (done bool, err error) {
	switch p := pkt.(type) {
	case *encoding.PublishPacket311:
		if err := b.Publish(ctx, clientID, p); err != nil {
			return false, err
		}
	case *encoding.SubscribePacket311:
		suback, err := b.Subscribe(ctx, clientID, p)
		if err != nil {
			return false, err
		}
		return false, writePacket(conn, suback)
	case *encoding.UnsubscribePacket311:
		unsuback, err := b.Unsubscribe(ctx, clientID, p)
		if err != nil {
			return false, err
		}
		return false, writePacket(conn, unsuback)
	case *encoding.PubackPacket311:
		return false, ignoreUnknownID(b.Puback(clientID, p.PacketID))
	case *encoding.PubrecPacket311:
		return false, ignoreUnknownID(b.Pubrec(clientID, p.PacketID))
	case *encoding.PubrelPacket311:
		return false, ignoreUnknownID(b.Pubrel(clientID, p.PacketID))
	case *encoding.PubcompPacket311:
		return false, ignoreUnknownID(b.Pubcomp(clientID, p.PacketID))
	case *encoding.PingreqPacket:
		pingresp, err := b.Pingreq(clientID)
		if err != nil {
			return false, err
		}
		return false, writePacket(conn, pingresp)
	case *encoding.DisconnectPacket311:
		return true, b.Disconnect(ctx, clientID)
	default:
		return true, encoding.ErrProtocolViolation
	}

	return false, nil
}

// ignoreUnknownID downgrades an acknowledgement for a packet id the
// broker no longer tracks: the protocol permits receiving a stale
// PUBACK/PUBREC/PUBREL/PUBCOMP, so the connection stays up.
func ignoreUnknownID(err error) error {
	if errors.Is(err, qos.ErrPacketIDNotFound) {
		return nil
	}
	return err
}

func senderFor(conn *Connection) broker.Sender {
	return func(pkt encoding.Packet) error {
		return writePacket(conn, pkt)
	}
}

func writePacket(conn *Connection, pkt encoding.Packet) error {
	if pkt == nil {
		return nil
	}
	encodable, ok := pkt.(interface{ Encode(io.Writer) error })
	if !ok {
		return encoding.ErrProtocolViolation
	}
	return encodable.Encode(conn)
}
