package keymaterial

// StaticLoader returns a fixed in-memory scalar. It exists for tests and
// for collaborators that hand the node an already-resolved handle rather
// than a file path.
type StaticLoader struct {
	Scalar [ScalarSize]byte
}

// NewStaticLoader wraps scalar as a Loader.
func NewStaticLoader(scalar [ScalarSize]byte) *StaticLoader {
	return &StaticLoader{Scalar: scalar}
}

// Load returns the wrapped scalar.
func (s *StaticLoader) Load() ([ScalarSize]byte, error) {
	return s.Scalar, nil
}
