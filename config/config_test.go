package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:1883", cfg.Addr())
	assert.Equal(t, uint32(2<<20), cfg.MaxPacketBytes)
	assert.Equal(t, 20*time.Second, cfg.RetransmitInterval)
	assert.Equal(t, 1.5, cfg.KeepAliveGrace)
	assert.Equal(t, time.Duration(0), cfg.StatsInterval)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = "" }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"zero max packet", func(c *Config) { c.MaxPacketBytes = 0 }},
		{"max packet beyond remaining-length ceiling", func(c *Config) { c.MaxPacketBytes = 268435456 }},
		{"zero retransmit interval", func(c *Config) { c.RetransmitInterval = 0 }},
		{"negative retransmit interval", func(c *Config) { c.RetransmitInterval = -time.Second }},
		{"grace below one", func(c *Config) { c.KeepAliveGrace = 0.5 }},
		{"negative stats interval", func(c *Config) { c.StatsInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAddrJoinsHostAndPort(t *testing.T) {
	cfg := Default()
	cfg.Host = "::1"
	cfg.Port = 8883
	assert.Equal(t, "[::1]:8883", cfg.Addr())
}

func TestMaxPacketAtCeilingIsValid(t *testing.T) {
	cfg := Default()
	cfg.MaxPacketBytes = 268435455
	assert.NoError(t, cfg.Validate())
}
