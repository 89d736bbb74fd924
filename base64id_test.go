package sio

import (
	"encoding/base64"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBase64ID(t *testing.T) {
	id, err := GenerateBase64ID(Base64IDSize)
	require.NoError(t, err)
	assert.Len(t, id, 20)

	b, err := base64.URLEncoding.DecodeString(id)
	require.NoError(t, err)
	assert.Len(t, b, Base64IDSize)

	_, err = GenerateBase64ID(seqSize)
	assert.ErrorIs(t, err, errBase64IDInvalidSize)
}

func TestGenerateBase64IDUnique(t *testing.T) {
	ids := mapset.NewThreadUnsafeSet[string]()
	for i := 0; i < 1000; i++ {
		id, err := GenerateBase64ID(Base64IDSize)
		require.NoError(t, err)
		assert.True(t, ids.Add(id), "duplicate ID: %s", id)
	}
}
