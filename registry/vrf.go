package registry

import (
	"crypto/sha256"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/hkdf"
)

// VRFKeyPair is a node's verifiable-random-function key material: a
// Ristretto scalar and its corresponding public point, reused from the
// same group the Sphinx mixer derives its Diffie-Hellman shared secrets
// over (spec §4.3, §GLOSSARY: "VRF").
type VRFKeyPair struct {
	secret *ristretto255.Scalar
	public *ristretto255.Element
}

// NewVRFKeyPair derives a VRF keypair from secret entropy of any length,
// expanded to 64 bytes via HKDF before it is reduced to a scalar.
func NewVRFKeyPair(seedEntropy []byte) *VRFKeyPair {
	secret := ristretto255.NewScalar().FromUniformBytes(
		wideHash(seedEntropy, "mixnode-vrf-secret"),
	)
	public := ristretto255.NewElement().ScalarBaseMult(secret)

	return &VRFKeyPair{secret: secret, public: public}
}

// PublicKey returns the encoded public point, suitable for publishing in a
// MixNodeInfo descriptor.
func (kp *VRFKeyPair) PublicKey() [PublicKeySize]byte {
	var out [PublicKeySize]byte
	copy(out[:], kp.public.Encode(nil))
	return out
}

// VRFProof is a non-interactive Chaum-Pedersen proof of discrete-log
// equality between (basepoint, publicKey) and (hashPoint, gamma),
// demonstrating that gamma = secret*hashPoint was computed honestly without
// revealing secret. This is the "provable via the paired proof" mechanism
// spec.md's GLOSSARY calls for.
type VRFProof struct {
	Gamma [PublicKeySize]byte
	C     [32]byte
	S     [32]byte
}

// Hash computes the VRF output seed and its proof for the given input,
// deterministically: seed = H(gamma), where gamma = secret * H(input).
//
// This realizes spec.md §4.3 step 1: "seed = VRF_hash(node_secret_vrf,
// stream_id || epoch_be) — deterministic, uniformly distributed, and
// provable via the paired proof."
func (kp *VRFKeyPair) Hash(input []byte) (seed [32]byte, proof VRFProof) {
	hashPoint := hashToPoint(input)
	gamma := ristretto255.NewElement().ScalarMult(kp.secret, hashPoint)

	seed = sha256.Sum256(gamma.Encode(nil))

	// Chaum-Pedersen DLEQ proof that log_G(pub) == log_hashPoint(gamma).
	// The nonce k is derived deterministically from the secret and input
	// (RFC6979-style) so the whole Hash call stays pure and testable
	// without reaching for crypto/rand on the hot path.
	k := ristretto255.NewScalar().FromUniformBytes(
		wideHash(append(kp.secret.Encode(nil), input...), "mixnode-vrf-nonce"),
	)

	commit1 := ristretto255.NewElement().ScalarBaseMult(k)
	commit2 := ristretto255.NewElement().ScalarMult(k, hashPoint)

	c := challengeScalar(
		kp.public.Encode(nil), hashPoint.Encode(nil), gamma.Encode(nil),
		commit1.Encode(nil), commit2.Encode(nil),
	)

	// s = k - c*secret (mod l)
	s := ristretto255.NewScalar().Subtract(
		k, ristretto255.NewScalar().Multiply(c, kp.secret),
	)

	copy(proof.Gamma[:], gamma.Encode(nil))
	copy(proof.C[:], c.Encode(nil))
	copy(proof.S[:], s.Encode(nil))

	return seed, proof
}

// VerifyVRF checks a VRF proof against a published public key and input,
// returning the seed on success. Used by clients and registry auditors,
// not by the node's own hot processing path.
func VerifyVRF(publicKey [PublicKeySize]byte, input []byte, proof VRFProof) (
	seed [32]byte, ok bool) {

	pub := ristretto255.NewElement()
	if err := pub.Decode(publicKey[:]); err != nil {
		return seed, false
	}

	gamma := ristretto255.NewElement()
	if err := gamma.Decode(proof.Gamma[:]); err != nil {
		return seed, false
	}

	c := ristretto255.NewScalar()
	if err := c.Decode(proof.C[:]); err != nil {
		return seed, false
	}

	s := ristretto255.NewScalar()
	if err := s.Decode(proof.S[:]); err != nil {
		return seed, false
	}

	hashPoint := hashToPoint(input)

	// commit1' = s*G + c*pub
	commit1 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(s),
		ristretto255.NewElement().ScalarMult(c, pub),
	)

	// commit2' = s*hashPoint + c*gamma
	commit2 := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarMult(s, hashPoint),
		ristretto255.NewElement().ScalarMult(c, gamma),
	)

	expected := challengeScalar(
		publicKey[:], hashPoint.Encode(nil), proof.Gamma[:],
		commit1.Encode(nil), commit2.Encode(nil),
	)

	if !bytesEqual(expected.Encode(nil), proof.C[:]) {
		return seed, false
	}

	return sha256.Sum256(proof.Gamma[:]), true
}

// hashToPoint maps arbitrary input onto the Ristretto group via the
// group's Elligator2-based uniform map, giving every VRF query a fresh,
// unpredictable base point rather than reusing the fixed generator.
func hashToPoint(input []byte) *ristretto255.Element {
	return ristretto255.NewElement().FromUniformBytes(
		wideHash(input, "mixnode-vrf-hash-to-point"),
	)
}

// challengeScalar folds the proof transcript into a single scalar via a
// wide hash, standard Fiat-Shamir practice for turning an interactive
// sigma protocol into a non-interactive one.
func challengeScalar(parts ...[]byte) *ristretto255.Scalar {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p) //nolint:errcheck
	}
	digest := h.Sum(nil)

	return ristretto255.NewScalar().FromUniformBytes(
		wideHash(digest, "mixnode-vrf-challenge"),
	)
}

// wideHash expands input into 64 bytes of uniform output via HKDF, the
// width ristretto255's FromUniformBytes constructors require for
// unbiased scalar/element sampling.
func wideHash(input []byte, info string) []byte {
	kdf := hkdf.New(sha256.New, input, nil, []byte(info))
	out := make([]byte, 64)
	if _, err := kdf.Read(out); err != nil {
		panic(err) // hkdf.Read only fails if the output is absurdly long
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
