package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeResponse(t *testing.T) {
	hr := &HandshakeResponse{
		SID:          "123456789",
		Upgrades:     []string{"websocket"},
		PingInterval: 25000,
		PingTimeout:  5000,
	}

	p, err := NewHandshakePacket(hr)
	require.NoError(t, err)
	assert.Equal(t, PacketTypeOpen, p.Type)

	parsed, err := ParseHandshakeResponse(p)
	require.NoError(t, err)

	assert.Equal(t, hr.SID, parsed.SID)
	assert.Equal(t, hr.Upgrades, parsed.Upgrades)
	assert.Equal(t, 25*time.Second, parsed.GetPingInterval())
	assert.Equal(t, 5*time.Second, parsed.GetPingTimeout())
}

func TestHandshakeEmptyUpgrades(t *testing.T) {
	p, err := NewHandshakePacket(&HandshakeResponse{SID: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(p.Data), `"upgrades":[]`)
}

func TestHandshakeWrongPacketType(t *testing.T) {
	p := mustCreatePacket(t, PacketTypeMessage, false, []byte("{}"))
	_, err := ParseHandshakeResponse(p)
	assert.Error(t, err)
}
