package inject

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tollsimy/rapid/internal/types"
)

// PatchWriter materializes a fault record as an on-disk artifact the
// test harness can execute.
type PatchWriter interface {
	Write(rec types.FaultRecord, original []byte) (string, error)
}

// FlipWriter writes one patched copy of the binary per record, with the
// record's single bit flipped, named <binary>_<testNumber>.
type FlipWriter struct {
	OutDir string
	// Mode is applied to each patched file. Zero means 0755 so the
	// harness can execute the copies directly.
	Mode os.FileMode
}

func (w *FlipWriter) Write(rec types.FaultRecord, original []byte) (string, error) {
	if rec.ByteOffset < 0 || rec.ByteOffset >= int64(len(original)) {
		return "", fmt.Errorf("byte offset %d out of range for %d-byte binary", rec.ByteOffset, len(original))
	}
	if rec.BitOffset > 7 {
		return "", fmt.Errorf("bit offset %d out of range", rec.BitOffset)
	}

	patched := make([]byte, len(original))
	copy(patched, original)
	patched[rec.ByteOffset] ^= 1 << rec.BitOffset

	mode := w.Mode
	if mode == 0 {
		mode = 0o755
	}
	if w.OutDir != "" {
		if err := os.MkdirAll(w.OutDir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}
	path := filepath.Join(w.OutDir, fmt.Sprintf("%s_%d", rec.Binary, rec.TestNumber))
	if err := os.WriteFile(path, patched, mode); err != nil {
		return "", fmt.Errorf("write patched binary: %w", err)
	}
	return path, nil
}

// PatchAll reads the original binary once and writes one patched copy
// per record, returning the paths in record order.
func PatchAll(w PatchWriter, binaryPath string, records []types.FaultRecord) ([]string, error) {
	original, err := os.ReadFile(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("read target binary: %w", err)
	}
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		p, err := w.Write(rec, original)
		if err != nil {
			return nil, fmt.Errorf("test %d: %w", rec.TestNumber, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
