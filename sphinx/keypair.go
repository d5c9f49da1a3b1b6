package sphinx

import "github.com/gtank/ristretto255"

// KeyPair is a node's long-term Diffie-Hellman key over the Ristretto
// group: the private_scalar of spec §4.1 and its public counterpart,
// published in this node's MixNodeInfo descriptor.
type KeyPair struct {
	Secret *ristretto255.Scalar
	Public *ristretto255.Element
}

// NewKeyPair wraps a clamped scalar supplied by the key-material
// collaborator (spec §6: "Key loader: provides a 32-byte clamped
// scalar"). The node treats this value as opaque sealed input; NewKeyPair
// only reduces it modulo the group order (a clamped scalar has bit 254 set,
// so it is never a canonical encoding as given) and derives the
// corresponding public point. The returned error is always nil.
func NewKeyPair(clampedScalar [32]byte) (*KeyPair, error) {
	var wide [64]byte
	copy(wide[:], clampedScalar[:])
	secret := ristretto255.NewScalar().FromUniformBytes(wide[:])

	public := ristretto255.NewElement().ScalarBaseMult(secret)

	return &KeyPair{Secret: secret, Public: public}, nil
}

// PublicKey returns the encoded public point for publishing in a
// MixNodeInfo descriptor.
func (kp *KeyPair) PublicKey() [EphemeralKeySize]byte {
	var out [EphemeralKeySize]byte
	copy(out[:], kp.Public.Encode(nil))
	return out
}
