package sphinx

import (
	"crypto/hmac"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20"
)

// keystream generates length bytes of ChaCha20 keystream under key. The
// nonce is always zero: each key here is derived fresh per packet per hop
// from a Diffie-Hellman shared secret, so key reuse across invocations
// never happens in practice.
func keystream(key []byte, length int) []byte {
	var nonce [chacha20.NonceSize]byte

	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		panic(err)
	}

	out := make([]byte, length)
	c.XORKeyStream(out, out)
	return out
}

// xorBytes XORs a against b up to the shorter length of the two.
func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// computeMAC returns the HMAC-SHA256 of data under key.
func computeMAC(key, data []byte) [32]byte {
	m := hmac.New(sha256.New, key)
	m.Write(data) //nolint:errcheck

	var out [32]byte
	copy(out[:], m.Sum(nil))
	return out
}

// verifyMAC checks tag against the HMAC-SHA256 of data under key in
// constant time.
func verifyMAC(key, data, tag []byte) bool {
	expected := computeMAC(key, data)
	return hmac.Equal(expected[:], tag)
}
