package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub := PublicKeyHex(&key.PublicKey)

	payloads := [][]byte{
		[]byte(`{"product_id":"P1"}`),
		[]byte(""),
		[]byte(`{"a":[1,2,3],"b":{"c":"d"}}`),
	}
	for _, data := range payloads {
		sig, err := Sign(key, data)
		require.NoError(t, err)
		assert.Len(t, sig, SignatureLength*2)
		assert.True(t, Verify(pub, data, sig))
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub := PublicKeyHex(&key.PublicKey)
	data := []byte(`{"product_id":"P1","name":"Coffee"}`)

	sig, err := Sign(key, data)
	require.NoError(t, err)

	t.Run("data", func(t *testing.T) {
		for i := range data {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= 0x01
			assert.False(t, Verify(pub, mutated, sig), "byte %d", i)
		}
	})

	t.Run("signature", func(t *testing.T) {
		raw, err := hex.DecodeString(sig)
		require.NoError(t, err)
		for i := range raw {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= 0x01
			assert.False(t, Verify(pub, data, hex.EncodeToString(mutated)), "byte %d", i)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := GenerateKey()
		require.NoError(t, err)
		assert.False(t, Verify(PublicKeyHex(&other.PublicKey), data, sig))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.False(t, Verify("zz", data, sig))
		assert.False(t, Verify(pub, data, "not-hex"))
		assert.False(t, Verify(pub, data, sig[:len(sig)-2]))
	})
}

func TestSignCanonicalMatchesFieldOrder(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub := PublicKeyHex(&key.PublicKey)

	sig, err := SignCanonical(key, map[string]any{"name": "Coffee", "product_id": "P1"})
	require.NoError(t, err)

	assert.True(t, Verify(pub, []byte(`{"name":"Coffee","product_id":"P1"}`), sig))
	assert.True(t, Verifier{}.Verify(pub, []byte(`{"name":"Coffee","product_id":"P1"}`), sig))
}

func TestParsePublicKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	parsed, err := ParsePublicKey(PublicKeyHex(&key.PublicKey))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(&key.PublicKey))

	_, err = ParsePublicKey("04abcd")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestPrivateKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromHex(PrivateKeyHex(key))
	require.NoError(t, err)
	assert.Zero(t, key.D.Cmp(restored.D))
}

func TestAddress(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	addr := Address(&key.PublicKey)
	assert.True(t, IsValidAddress(addr))
	assert.Equal(t, addr, Address(&key.PublicKey))
	assert.False(t, IsValidAddress("trc"+addr[3:]))
	assert.False(t, IsValidAddress(addr[:10]))
}
