package keymaterial

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileLoaderRoundTrip(t *testing.T) {
	t.Parallel()

	var want [ScalarSize]byte
	for i := range want {
		want[i] = byte(i)
	}

	path := filepath.Join(t.TempDir(), "scalar.hex")
	require.NoError(t, writeHexFile(path, want[:]))

	got, err := NewFileLoader(path).Load()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFileLoaderRejectsBadLength(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scalar.hex")
	require.NoError(t, writeHexFile(path, []byte{0x01, 0x02}))

	_, err := NewFileLoader(path).Load()
	require.Error(t, err)
}

func TestFileLoaderRejectsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewFileLoader(filepath.Join(t.TempDir(), "missing.hex")).Load()
	require.Error(t, err)
}

func TestStaticLoader(t *testing.T) {
	t.Parallel()

	var scalar [ScalarSize]byte
	scalar[0] = 0xff

	got, err := NewStaticLoader(scalar).Load()
	require.NoError(t, err)
	require.Equal(t, scalar, got)
}

func writeHexFile(path string, raw []byte) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(raw)+"\n"), 0o600)
}
