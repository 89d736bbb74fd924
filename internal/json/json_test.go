package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handshake struct {
	SID      string   `json:"sid"`
	Upgrades []string `json:"upgrades"`
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(&handshake{SID: "abc", Upgrades: []string{"websocket"}})
	require.NoError(t, err)
	assert.Equal(t, `{"sid":"abc","upgrades":["websocket"]}`, string(data))

	var hs handshake
	require.NoError(t, Unmarshal(data, &hs))
	assert.Equal(t, "abc", hs.SID)
}

func TestEncoder(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"code": 1}))
	assert.Equal(t, "{\"code\":1}\n", buf.String())

	var v map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&v))
	assert.Equal(t, 1, v["code"])
}
