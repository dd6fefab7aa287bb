package encoding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketError(t *testing.T) {
	t.Run("Error method with message", func(t *testing.T) {
		pktErr := &PacketError{
			Err:     ErrMalformedPacket,
			Type:    CONNECT,
			Message: "invalid variable byte integer",
		}
		expected := "malformed packet: invalid variable byte integer"
		assert.Equal(t, expected, pktErr.Error())
	})

	t.Run("Error method without message", func(t *testing.T) {
		pktErr := &PacketError{
			Err:  ErrMalformedPacket,
			Type: CONNECT,
		}
		assert.Equal(t, "malformed packet", pktErr.Error())
	})

	t.Run("Unwrap method", func(t *testing.T) {
		pktErr := &PacketError{
			Err:     ErrMalformedPacket,
			Type:    CONNECT,
			Message: "test",
		}
		assert.Equal(t, ErrMalformedPacket, pktErr.Unwrap())
	})
}

func TestNewMalformedPacketError(t *testing.T) {
	err := NewMalformedPacketError(PUBLISH, ErrInvalidQoS, "QoS value is 3")

	require.NotNil(t, err)
	assert.Equal(t, PUBLISH, err.Type)
	assert.Equal(t, ErrInvalidQoS, err.Err)
	assert.Equal(t, "QoS value is 3", err.Message)
	assert.Contains(t, err.Error(), "invalid QoS level")
	assert.Contains(t, err.Error(), "QoS value is 3")
}

func TestErrorPropagation(t *testing.T) {
	t.Run("Error chain with Is", func(t *testing.T) {
		pktErr := NewMalformedPacketError(PUBLISH, ErrInvalidQoS, "test")
		assert.True(t, errors.Is(pktErr, ErrInvalidQoS))
	})

	t.Run("Error chain with As", func(t *testing.T) {
		pktErr := NewMalformedPacketError(SUBSCRIBE, ErrInvalidFlags, "test")
		var target *PacketError
		assert.True(t, errors.As(pktErr, &target))
		assert.Equal(t, SUBSCRIBE, target.Type)
	})

	t.Run("Wrapped standard error keeps Is working", func(t *testing.T) {
		pktErr := NewMalformedPacketError(CONNECT, ErrInvalidProtocolVersion, "")
		assert.True(t, errors.Is(pktErr, ErrInvalidProtocolVersion))
		assert.False(t, errors.Is(pktErr, ErrInvalidQoS))
	})
}

func TestMalformedPacketErrors(t *testing.T) {
	// Test that all error sentinels are properly defined
	assert.NotNil(t, ErrInvalidConnectFlags)
	assert.NotNil(t, ErrInvalidWillQoS)
	assert.NotNil(t, ErrWillFlagMismatch)
	assert.NotNil(t, ErrMissingPacketID)
	assert.NotNil(t, ErrInvalidPacketIDZero)
	assert.NotNil(t, ErrInvalidRemainingLength)
	assert.NotNil(t, ErrInvalidTopicName)
	assert.NotNil(t, ErrInvalidTopicFilter)
	assert.NotNil(t, ErrEmptyTopicFilter)
	assert.NotNil(t, ErrEmptySubscriptionList)
	assert.NotNil(t, ErrEmptyUnsubscribeList)
	assert.NotNil(t, ErrPayloadTooLarge)
	assert.NotNil(t, ErrInvalidPublishTopicName)
	assert.NotNil(t, ErrUsernameWithoutFlag)
	assert.NotNil(t, ErrPasswordWithoutFlag)
	assert.NotNil(t, ErrPasswordWithoutUsername)
	assert.NotNil(t, ErrUnsupportedType)
	assert.NotNil(t, ErrTruncated)
	assert.NotNil(t, ErrProtocolViolation)
	assert.NotNil(t, ErrOversizedPacket)
}
