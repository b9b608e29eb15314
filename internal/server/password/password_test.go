package password

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_HashThenVerify(t *testing.T) {
	h := NewHasher()

	for _, pw := range []string{"P@ssw0rd!", "", "пароль", strings.Repeat("x", 200)} {
		enc, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, h.Verify(enc, pw), "password %q must verify", pw)
	}
}

func TestHasher_WrongPasswordFails(t *testing.T) {
	h := NewHasher()

	enc, err := h.Hash("P@ssw0rd!")
	require.NoError(t, err)

	assert.False(t, h.Verify(enc, "P@ssw0rd"))
	assert.False(t, h.Verify(enc, "p@ssw0rd!"))
	assert.False(t, h.Verify(enc, ""))
}

func TestHasher_SaltsDiffer(t *testing.T) {
	h := NewHasher()

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify(a, "same"))
	assert.True(t, h.Verify(b, "same"))
}

func TestHasher_EncodingShape(t *testing.T) {
	enc, err := NewHasher().Hash("pw")
	require.NoError(t, err)

	parts := strings.Split(enc, ":")
	require.Len(t, parts, 2)

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	key, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	assert.Len(t, salt, DefaultSaltLength)
	assert.Len(t, key, DefaultKeyLength)
}

func TestHasher_Verify_MalformedFailsClosed(t *testing.T) {
	h := NewHasher()

	cases := []string{
		"",
		"no-separator",
		"a:b:c",
		"!!!:AAAA",
		"AAAA:!!!",
		":AAAA",
		"AAAA:",
	}
	for _, c := range cases {
		assert.False(t, h.Verify(c, "pw"), "input %q", c)
	}
}

// RFC 7914 section 11 vector: PBKDF2-HMAC-SHA256("passwd", "salt", 1, 64).
func TestHasher_Verify_KnownVector(t *testing.T) {
	key, err := hex.DecodeString("55ac046e56e3089fec1691c22544b605f94185216dde0465e68b9d57c20dacbc" +
		"49ca9cccf179b645991664b39d77ef317c71b845b1e30bd509112041d3a19783")
	require.NoError(t, err)

	h := &Hasher{params: Params{Iterations: 1, SaltLength: 16, KeyLength: 64}}
	enc := base64.StdEncoding.EncodeToString([]byte("salt")) + ":" + base64.StdEncoding.EncodeToString(key)

	assert.True(t, h.Verify(enc, "passwd"))
	assert.False(t, h.Verify(enc, "Passwd"))
}

func TestNewHasherWithParams(t *testing.T) {
	_, err := NewHasherWithParams(Params{Iterations: 0, SaltLength: 16, KeyLength: 32})
	assert.ErrorIs(t, err, ErrWeakParams)

	_, err = NewHasherWithParams(Params{Iterations: 1, SaltLength: 8, KeyLength: 32})
	assert.ErrorIs(t, err, ErrWeakParams)

	h, err := NewHasherWithParams(Params{Iterations: 2, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)

	enc, err := h.Hash("pw")
	require.NoError(t, err)
	assert.True(t, h.Verify(enc, "pw"))
}

func BenchmarkHasher_Hash(b *testing.B) {
	h := NewHasher()
	for i := 0; i < b.N; i++ {
		_, _ = h.Hash("P@ssw0rd!")
	}
}
