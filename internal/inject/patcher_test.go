package inject

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollsimy/rapid/internal/types"
)

func TestFlipWriter(t *testing.T) {
	dir := t.TempDir()
	original := []byte{0x00, 0xFF, 0xA5, 0x3C}

	rec := types.FaultRecord{
		Binary:     "app.bin",
		ByteOffset: 2,
		BitOffset:  4,
		TestNumber: 17,
	}
	w := &FlipWriter{OutDir: dir}
	path, err := w.Write(rec, original)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.bin_17"), path)

	patched, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, patched, len(original))
	assert.Equal(t, byte(0xA5^0x10), patched[2])
	for _, i := range []int{0, 1, 3} {
		assert.Equal(t, original[i], patched[i], "byte %d must be untouched", i)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestFlipWriter_OutOfRange(t *testing.T) {
	w := &FlipWriter{OutDir: t.TempDir()}
	_, err := w.Write(types.FaultRecord{Binary: "a", ByteOffset: 4, TestNumber: 0}, []byte{1, 2, 3, 4})
	assert.Error(t, err)
	_, err = w.Write(types.FaultRecord{Binary: "a", ByteOffset: -1, TestNumber: 0}, []byte{1, 2})
	assert.Error(t, err)
}

func TestPatchAll(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.bin")
	require.NoError(t, os.WriteFile(src, []byte{0x01, 0x02, 0x03, 0x04}, 0o755))

	recs := []types.FaultRecord{
		{Binary: "app.bin", ByteOffset: 0, BitOffset: 0, TestNumber: 0},
		{Binary: "app.bin", ByteOffset: 3, BitOffset: 7, TestNumber: 1},
	}
	// The output directory does not exist yet; the writer creates it.
	out := filepath.Join(dir, "campaign", "patched")

	paths, err := PatchAll(&FlipWriter{OutDir: out}, src, recs)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	first, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x02, 0x03, 0x04}, first)

	second, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x84}, second)
}
