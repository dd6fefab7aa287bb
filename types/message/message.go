package message

import (
	"time"

	"github.com/axmq/axbroker/encoding"
)

// Message represents a QoS message with all necessary metadata
type Message struct {
	PacketID      uint16
	Topic         string
	Payload       []byte
	QoS           encoding.QoS
	Retain        bool
	DUP           bool
	CreatedAt     time.Time
	LastAttemptAt time.Time
	AttemptCount  int
}

// NewMessage creates a new QoS message
func NewMessage(packetID uint16, topic string, payload []byte, qos encoding.QoS, retain bool) *Message {
	now := time.Now()
	return &Message{
		PacketID:      packetID,
		Topic:         topic,
		Payload:       payload,
		QoS:           qos,
		Retain:        retain,
		DUP:           false,
		CreatedAt:     now,
		LastAttemptAt: now,
		AttemptCount:  0,
	}
}

// MarkAttempt marks a delivery attempt
func (m *Message) MarkAttempt() {
	m.AttemptCount++
	m.LastAttemptAt = time.Now()
	if m.AttemptCount > 1 {
		m.DUP = true
	}
}

// Clone creates a deep copy of the message
func (m *Message) Clone() *Message {
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)

	return &Message{
		PacketID:      m.PacketID,
		Topic:         m.Topic,
		Payload:       payload,
		QoS:           m.QoS,
		Retain:        m.Retain,
		DUP:           m.DUP,
		CreatedAt:     m.CreatedAt,
		LastAttemptAt: m.LastAttemptAt,
		AttemptCount:  m.AttemptCount,
	}
}
