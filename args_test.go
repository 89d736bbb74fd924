package sio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsBind(t *testing.T) {
	args := Args{
		"hello",
		float64(42),
		map[string]any{"room": "lobby", "max_users": float64(10), "avatar": Binary{1, 2}},
	}

	var s string
	require.NoError(t, args.Bind(0, &s))
	assert.Equal(t, "hello", s)

	var n int
	require.NoError(t, args.Bind(1, &n))
	assert.Equal(t, 42, n)

	var v struct {
		Room     string `json:"room"`
		MaxUsers int    `json:"max_users"`
		Avatar   []byte `json:"avatar"`
	}
	require.NoError(t, args.Bind(2, &v))
	assert.Equal(t, "lobby", v.Room)
	assert.Equal(t, 10, v.MaxUsers)
	assert.Equal(t, []byte{1, 2}, v.Avatar)

	assert.Error(t, args.Bind(3, &s))

	str, ok := args.String(0)
	assert.True(t, ok)
	assert.Equal(t, "hello", str)
	_, ok = args.String(1)
	assert.False(t, ok)
}
