package keymaterial

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// FileLoader reads a hex-encoded clamped scalar from a file on disk, with
// a trailing newline (if any) trimmed. This is the reference collaborator
// implementation for the "file path" variant named in spec §6.
type FileLoader struct {
	Path string
}

// NewFileLoader returns a Loader that reads the scalar from path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

// Load reads and decodes the scalar from the configured path.
func (f *FileLoader) Load() ([ScalarSize]byte, error) {
	var scalar [ScalarSize]byte

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return scalar, fmt.Errorf("keymaterial: reading %s: %w", f.Path, err)
	}

	trimmed := strings.TrimSpace(string(raw))

	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return scalar, fmt.Errorf("keymaterial: decoding %s: %w", f.Path, err)
	}

	if len(decoded) != ScalarSize {
		return scalar, fmt.Errorf("keymaterial: %s: expected %d bytes, got %d",
			f.Path, ScalarSize, len(decoded))
	}

	copy(scalar[:], decoded)

	return scalar, nil
}
