package sphinx

import (
	"crypto/sha256"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/hkdf"
)

// ReplayTagSize is the size of a per-hop replay identifier (spec §3).
const ReplayTagSize = 16

// derivedKeys holds the five domain-separated outputs the mixer derives
// from a single Diffie-Hellman shared secret (spec §4.1 step 2).
type derivedKeys struct {
	ReplayTag        [ReplayTagSize]byte
	HeaderMACKey     [32]byte
	HeaderStreamKey  [32]byte
	PayloadStreamKey [32]byte
	BlindingScalar   *ristretto255.Scalar
}

// deriveKeys expands a shared secret into the mixer's per-hop key
// material via domain-separated HKDF-SHA256, one Expand per output so a
// compromise of one key reveals nothing about the others.
func deriveKeys(sharedSecret []byte) derivedKeys {
	var out derivedKeys

	copy(out.ReplayTag[:], expand(sharedSecret, "replay_tag", ReplayTagSize))
	copy(out.HeaderMACKey[:], expand(sharedSecret, "header_mac_key", 32))
	copy(out.HeaderStreamKey[:], expand(sharedSecret, "header_stream_key", 32))
	copy(out.PayloadStreamKey[:], expand(sharedSecret, "payload_stream_key", 32))

	out.BlindingScalar = ristretto255.NewScalar().FromUniformBytes(
		expand(sharedSecret, "blinding_scalar", 64),
	)

	return out
}

// expand runs HKDF-SHA256 with no salt and the given info string, the
// shared helper every domain-separated derivation in this package goes
// through.
func expand(secret []byte, info string, length int) []byte {
	kdf := hkdf.New(sha256.New, secret, nil, []byte(info))

	out := make([]byte, length)
	if _, err := kdf.Read(out); err != nil {
		panic(err) // hkdf.Read only fails if length is absurdly long
	}

	return out
}
