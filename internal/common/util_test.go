package common

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandBase64String_DecodesToRequestedSize(t *testing.T) {
	s, err := MakeRandBase64String(32)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestMakeRandBase64String_Distinct(t *testing.T) {
	a, err := MakeRandBase64String(32)
	require.NoError(t, err)
	b, err := MakeRandBase64String(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex("hello"))
	assert.Len(t, SHA256Hex(""), 64)
}

func TestEqualHash(t *testing.T) {
	assert.True(t, EqualHash(SHA256Hex("a"), SHA256Hex("a")))
	assert.False(t, EqualHash(SHA256Hex("a"), SHA256Hex("b")))
	assert.False(t, EqualHash("", SHA256Hex("a")))
}
