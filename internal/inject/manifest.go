package inject

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tollsimy/rapid/internal/types"
)

// WriteManifest persists the campaign as a JSON array, one object per
// flip. The file is the contract between the generator and whatever
// harness actually runs the patched binaries.
func WriteManifest(path string, records []types.FaultRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a campaign manifest written by WriteManifest.
func ReadManifest(path string) ([]types.FaultRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var records []types.FaultRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return records, nil
}

// Index maps records by test number so classifiers can join a log block
// back to the fault that produced it.
func Index(records []types.FaultRecord) map[int]types.FaultRecord {
	idx := make(map[int]types.FaultRecord, len(records))
	for _, r := range records {
		idx[r.TestNumber] = r
	}
	return idx
}
