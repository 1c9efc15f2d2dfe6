package auth

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestMD5MatchesManualConcat(t *testing.T) {
	sum := md5.Sum([]byte("1" + "12345" + "xxx123456"))
	want := hex.EncodeToString(sum[:])

	got, err := Digest(MD5, "1", "12345", "xxx123456")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Empty algorithm defaults to md5.
	got, err = Digest("", "1", "12345", "xxx123456")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDigestBLAKE2b(t *testing.T) {
	got, err := Digest(BLAKE2b, "1", "n", "s")
	require.NoError(t, err)
	assert.Len(t, got, 64)

	other, err := Digest(BLAKE2b, "1", "n", "t")
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}

func TestDigestUnknownAlgorithm(t *testing.T) {
	_, err := Digest("sha1", "1", "n", "s")
	assert.Error(t, err)
	assert.False(t, Algorithm("sha1").Valid())
	assert.True(t, Algorithm("").Valid())
}

func TestSignUsesFreshNonces(t *testing.T) {
	a, err := Sign(MD5, "2", "secret")
	require.NoError(t, err)
	b, err := Sign(MD5, "2", "secret")
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Digest, b.Digest)
	assert.Equal(t, "2", a.Identity)
}

func TestCredentialsQuery(t *testing.T) {
	c, err := SignWithNonce(MD5, "7", "abc", "s")
	require.NoError(t, err)
	q := c.Query()
	assert.Equal(t, "7", q.Get("id"))
	assert.Equal(t, "abc", q.Get("nonce"))
	assert.Equal(t, c.Digest, q.Get("digest"))
}
