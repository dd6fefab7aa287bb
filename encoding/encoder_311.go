package encoding

import (
	"bytes"
	"io"
)

// MQTT 3.1.1 packet encoders.
//
// Every encoder builds the variable header and payload into a body
// buffer first, so the fixed header's Remaining Length is simply the
// buffer's length — the length arithmetic can never drift from what is
// actually written. The varint encoder emits the minimal form, so no
// packet carries extraneous continuation bytes.

// ConnectPacket311 represents an MQTT 3.1.1 CONNECT packet
type ConnectPacket311 struct {
	FixedHeader     FixedHeader
	ProtocolName    string
	ProtocolVersion ProtocolVersion
	CleanSession    bool
	WillFlag        bool
	WillQoS         QoS
	WillRetain      bool
	PasswordFlag    bool
	UsernameFlag    bool
	KeepAlive       uint16
	ClientID        string
	WillTopic       string
	WillPayload     []byte
	Username        string
	Password        []byte
}

// ConnackPacket311 represents an MQTT 3.1.1 CONNACK packet
type ConnackPacket311 struct {
	FixedHeader    FixedHeader
	SessionPresent bool
	ReturnCode     byte // 3.1.1 uses return codes instead of reason codes
}

// PublishPacket311 represents an MQTT 3.1.1 PUBLISH packet
type PublishPacket311 struct {
	FixedHeader FixedHeader
	TopicName   string
	PacketID    uint16
	Payload     []byte
}

// SubscribePacket311 represents an MQTT 3.1.1 SUBSCRIBE packet
type SubscribePacket311 struct {
	FixedHeader   FixedHeader
	PacketID      uint16
	Subscriptions []Subscription311
}

// Subscription311 represents a single subscription in MQTT 3.1.1
type Subscription311 struct {
	TopicFilter string
	QoS         QoS
}

// SubackPacket311 represents an MQTT 3.1.1 SUBACK packet
type SubackPacket311 struct {
	FixedHeader FixedHeader
	PacketID    uint16
	ReturnCodes []byte
}

// UnsubscribePacket311 represents an MQTT 3.1.1 UNSUBSCRIBE packet
type UnsubscribePacket311 struct {
	FixedHeader  FixedHeader
	PacketID     uint16
	TopicFilters []string
}

// UnsubackPacket311 represents an MQTT 3.1.1 UNSUBACK packet
type UnsubackPacket311 struct {
	FixedHeader FixedHeader
	PacketID    uint16
}

// DisconnectPacket311 represents an MQTT 3.1.1 DISCONNECT packet
type DisconnectPacket311 struct {
	FixedHeader FixedHeader
}

// PingreqPacket represents an MQTT PINGREQ packet. It carries no
// variable header or payload.
type PingreqPacket struct {
	FixedHeader FixedHeader
}

// PingrespPacket represents an MQTT PINGRESP packet.
type PingrespPacket struct {
	FixedHeader FixedHeader
}

// PubackPacket311 represents an MQTT 3.1.1 PUBACK packet
type PubackPacket311 struct {
	FixedHeader FixedHeader
	PacketID    uint16
}

// PubrecPacket311 represents an MQTT 3.1.1 PUBREC packet
type PubrecPacket311 struct {
	FixedHeader FixedHeader
	PacketID    uint16
}

// PubrelPacket311 represents an MQTT 3.1.1 PUBREL packet
type PubrelPacket311 struct {
	FixedHeader FixedHeader
	PacketID    uint16
}

// PubcompPacket311 represents an MQTT 3.1.1 PUBCOMP packet
type PubcompPacket311 struct {
	FixedHeader FixedHeader
	PacketID    uint16
}

// emitPacket writes the fixed header for the finished body, then the
// body itself.
func emitPacket(w io.Writer, packetType PacketType, flags byte, body *bytes.Buffer) error {
	fh := FixedHeader{
		Type:            packetType,
		Flags:           flags,
		RemainingLength: uint32(body.Len()),
	}
	if err := fh.EncodeFixedHeader311(w); err != nil {
		return err
	}
	if body.Len() == 0 {
		return nil
	}
	_, err := w.Write(body.Bytes())
	return err
}

// emitAck writes one of the two-byte acknowledgement packets
// (PUBACK/PUBREC/PUBREL/PUBCOMP/UNSUBACK): fixed header plus packet id.
func emitAck(w io.Writer, packetType PacketType, flags byte, packetID uint16) error {
	var body bytes.Buffer
	if err := writeTwoByteInt(&body, packetID); err != nil {
		return err
	}
	return emitPacket(w, packetType, flags, &body)
}

// emitBare writes a packet that is nothing but its fixed header
// (PINGREQ/PINGRESP/DISCONNECT).
func emitBare(w io.Writer, packetType PacketType) error {
	var body bytes.Buffer
	return emitPacket(w, packetType, 0, &body)
}

// connectFlags packs the CONNECT flag byte from the packet's fields.
func (p *ConnectPacket311) connectFlags() byte {
	var flags byte
	if p.CleanSession {
		flags |= 0x02
	}
	if p.WillFlag {
		flags |= 0x04 | byte(p.WillQoS)<<3
		if p.WillRetain {
			flags |= 0x20
		}
	}
	if p.PasswordFlag {
		flags |= 0x40
	}
	if p.UsernameFlag {
		flags |= 0x80
	}
	return flags
}

// Encode writes a CONNECT packet: protocol name and level, flag byte,
// keep-alive, then the flag-gated payload fields in their fixed order
// (client id, will topic, will message, username, password).
func (p *ConnectPacket311) Encode(w io.Writer) error {
	var body bytes.Buffer

	if err := writeUTF8String(&body, p.ProtocolName); err != nil {
		return err
	}
	if err := writeByte(&body, byte(p.ProtocolVersion)); err != nil {
		return err
	}
	if err := writeByte(&body, p.connectFlags()); err != nil {
		return err
	}
	if err := writeTwoByteInt(&body, p.KeepAlive); err != nil {
		return err
	}

	if err := writeUTF8String(&body, p.ClientID); err != nil {
		return err
	}
	if p.WillFlag {
		if err := writeUTF8String(&body, p.WillTopic); err != nil {
			return err
		}
		if err := writeBinaryData(&body, p.WillPayload); err != nil {
			return err
		}
	}
	if p.UsernameFlag {
		if err := writeUTF8String(&body, p.Username); err != nil {
			return err
		}
	}
	if p.PasswordFlag {
		if err := writeBinaryData(&body, p.Password); err != nil {
			return err
		}
	}

	return emitPacket(w, CONNECT, 0, &body)
}

// Encode writes a CONNACK packet: the session-present bit and the
// return code.
func (p *ConnackPacket311) Encode(w io.Writer) error {
	var body bytes.Buffer

	var ackFlags byte
	if p.SessionPresent {
		ackFlags = 0x01
	}
	if err := writeByte(&body, ackFlags); err != nil {
		return err
	}
	if err := writeByte(&body, p.ReturnCode); err != nil {
		return err
	}

	return emitPacket(w, CONNACK, 0, &body)
}

// Encode writes a PUBLISH packet. The low nibble carries DUP, QoS and
// RETAIN; the packet id is present only for QoS 1 and 2; the payload is
// whatever bytes remain, with no length prefix of its own.
func (p *PublishPacket311) Encode(w io.Writer) error {
	var body bytes.Buffer

	if err := writeUTF8String(&body, p.TopicName); err != nil {
		return err
	}
	if p.FixedHeader.QoS > QoS0 {
		if err := writeTwoByteInt(&body, p.PacketID); err != nil {
			return err
		}
	}
	if _, err := body.Write(p.Payload); err != nil {
		return err
	}

	// The fixed-header encoder derives the PUBLISH flag nibble from the
	// DUP/QoS/Retain fields itself.
	fh := FixedHeader{
		Type:            PUBLISH,
		DUP:             p.FixedHeader.DUP,
		QoS:             p.FixedHeader.QoS,
		Retain:          p.FixedHeader.Retain,
		RemainingLength: uint32(body.Len()),
	}
	if err := fh.EncodeFixedHeader311(w); err != nil {
		return err
	}
	if body.Len() == 0 {
		return nil
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Encode writes a PUBACK packet.
func (p *PubackPacket311) Encode(w io.Writer) error {
	return emitAck(w, PUBACK, 0, p.PacketID)
}

// Encode writes a PUBREC packet.
func (p *PubrecPacket311) Encode(w io.Writer) error {
	return emitAck(w, PUBREC, 0, p.PacketID)
}

// Encode writes a PUBREL packet. Its reserved flag nibble is 0010.
func (p *PubrelPacket311) Encode(w io.Writer) error {
	return emitAck(w, PUBREL, 0x02, p.PacketID)
}

// Encode writes a PUBCOMP packet.
func (p *PubcompPacket311) Encode(w io.Writer) error {
	return emitAck(w, PUBCOMP, 0, p.PacketID)
}

// Encode writes a SUBSCRIBE packet: packet id, then one
// (filter, requested-QoS) tuple per subscription. The reserved flag
// nibble is 0010.
func (p *SubscribePacket311) Encode(w io.Writer) error {
	var body bytes.Buffer

	if err := writeTwoByteInt(&body, p.PacketID); err != nil {
		return err
	}
	for _, sub := range p.Subscriptions {
		if err := writeUTF8String(&body, sub.TopicFilter); err != nil {
			return err
		}
		if err := writeByte(&body, byte(sub.QoS)); err != nil {
			return err
		}
	}

	return emitPacket(w, SUBSCRIBE, 0x02, &body)
}

// Encode writes a SUBACK packet: packet id plus one granted-QoS (or
// 0x80 failure) byte per requested subscription, in request order.
func (p *SubackPacket311) Encode(w io.Writer) error {
	var body bytes.Buffer

	if err := writeTwoByteInt(&body, p.PacketID); err != nil {
		return err
	}
	if _, err := body.Write(p.ReturnCodes); err != nil {
		return err
	}

	return emitPacket(w, SUBACK, 0, &body)
}

// Encode writes an UNSUBSCRIBE packet: packet id then the filters. The
// reserved flag nibble is 0010.
func (p *UnsubscribePacket311) Encode(w io.Writer) error {
	var body bytes.Buffer

	if err := writeTwoByteInt(&body, p.PacketID); err != nil {
		return err
	}
	for _, topic := range p.TopicFilters {
		if err := writeUTF8String(&body, topic); err != nil {
			return err
		}
	}

	return emitPacket(w, UNSUBSCRIBE, 0x02, &body)
}

// Encode writes an UNSUBACK packet.
func (p *UnsubackPacket311) Encode(w io.Writer) error {
	return emitAck(w, UNSUBACK, 0, p.PacketID)
}

// Encode writes a DISCONNECT packet, which is its fixed header alone.
func (p *DisconnectPacket311) Encode(w io.Writer) error {
	return emitBare(w, DISCONNECT)
}

// Encode writes a PINGREQ packet.
func (p *PingreqPacket) Encode(w io.Writer) error {
	return emitBare(w, PINGREQ)
}

// Encode writes a PINGRESP packet.
func (p *PingrespPacket) Encode(w io.Writer) error {
	return emitBare(w, PINGRESP)
}

// MQTT 3.1.1 Return Codes
const (
	ConnectAccepted311                    byte = 0x00
	ConnectRefusedUnacceptableProtocol311 byte = 0x01
	ConnectRefusedIdentifierRejected311   byte = 0x02
	ConnectRefusedServerUnavailable311    byte = 0x03
	ConnectRefusedBadUsernamePassword311  byte = 0x04
	ConnectRefusedNotAuthorized311        byte = 0x05
)
