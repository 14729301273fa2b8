// Package inject builds fault-injection campaigns: reproducible sets of
// single-bit flips over a target binary, a JSON manifest describing them,
// and optionally the patched binaries themselves.
package inject

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tollsimy/rapid/internal/types"
)

// Range is a half-open byte interval [Start, End) excluded from sampling.
type Range struct {
	Start int64 `yaml:"start" json:"start"`
	End   int64 `yaml:"end" json:"end"`
}

// Contains reports whether the byte offset falls inside the range.
func (r Range) Contains(off int64) bool { return off >= r.Start && off < r.End }

// Constraints narrows the sampling space of a campaign.
type Constraints struct {
	// Exclude lists byte ranges that must never be flipped, e.g. ELF
	// headers or read-only data the harness depends on.
	Exclude []Range
	// AllowRepeats permits the same (byte, bit) position to be drawn
	// more than once. Off by default.
	AllowRepeats bool
	// RetryBound caps consecutive rejected draws before the generator
	// gives up with ExhaustedSpaceError. Zero means DefaultRetryBound.
	RetryBound int
}

// DefaultRetryBound is the rejection cap used when Constraints leaves
// RetryBound at zero.
const DefaultRetryBound = 10000

// ExhaustedSpaceError is returned when the generator cannot place the
// requested number of flips within the retry bound. It usually means the
// exclusion ranges cover too much of the binary or NumFlips exceeds the
// number of distinct bit positions.
type ExhaustedSpaceError struct {
	Requested int
	Placed    int
	Retries   int
}

func (e *ExhaustedSpaceError) Error() string {
	return fmt.Sprintf("fault space exhausted: placed %d of %d flips after %d rejected draws",
		e.Placed, e.Requested, e.Retries)
}

// Generator samples bit positions for one campaign. A given (seed, size,
// constraints) triple always produces the same records.
type Generator struct {
	rng    *rand.Rand
	logger *zap.Logger
}

// NewGenerator returns a Generator driven by the given seed.
func NewGenerator(seed int64, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// Campaign draws numFlips bit positions over a binary of size bytes and
// returns them as FaultRecords sorted by (byteOffset, bitOffset), with
// test numbers assigned sequentially after sorting. The campaign ID is a
// fresh UUID unless campaignID is non-empty.
func (g *Generator) Campaign(binary string, size int64, numFlips int, campaignID string, c Constraints) ([]types.FaultRecord, error) {
	if size <= 0 {
		return nil, fmt.Errorf("binary %s has no injectable bytes (size %d)", binary, size)
	}
	if numFlips <= 0 {
		return nil, fmt.Errorf("numFlips must be positive, got %d", numFlips)
	}
	retryBound := c.RetryBound
	if retryBound <= 0 {
		retryBound = DefaultRetryBound
	}
	if campaignID == "" {
		campaignID = uuid.NewString()
	}

	type position struct {
		byteOff int64
		bitOff  uint8
	}
	seen := make(map[position]struct{}, numFlips)
	picked := make([]position, 0, numFlips)

	retries := 0
	for len(picked) < numFlips {
		p := position{
			byteOff: g.rng.Int63n(size),
			bitOff:  uint8(g.rng.Intn(8)),
		}
		if g.excluded(p.byteOff, c.Exclude) {
			retries++
		} else if _, dup := seen[p]; dup && !c.AllowRepeats {
			retries++
		} else {
			seen[p] = struct{}{}
			picked = append(picked, p)
			retries = 0
			continue
		}
		if retries >= retryBound {
			return nil, &ExhaustedSpaceError{
				Requested: numFlips,
				Placed:    len(picked),
				Retries:   retries,
			}
		}
	}

	sort.Slice(picked, func(i, j int) bool {
		if picked[i].byteOff != picked[j].byteOff {
			return picked[i].byteOff < picked[j].byteOff
		}
		return picked[i].bitOff < picked[j].bitOff
	})

	records := make([]types.FaultRecord, len(picked))
	for i, p := range picked {
		records[i] = types.FaultRecord{
			CampaignID: campaignID,
			Binary:     binary,
			ByteOffset: p.byteOff,
			BitOffset:  p.bitOff,
			TestNumber: i,
		}
	}

	g.logger.Info("campaign generated",
		zap.String("campaign", campaignID),
		zap.String("binary", binary),
		zap.Int("flips", len(records)),
		zap.Int64("size", size))
	return records, nil
}

// CampaignFromFile sizes the sampling space from the binary on disk.
func (g *Generator) CampaignFromFile(path string, numFlips int, campaignID string, c Constraints) ([]types.FaultRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat target binary: %w", err)
	}
	return g.Campaign(filepath.Base(path), info.Size(), numFlips, campaignID, c)
}

func (g *Generator) excluded(off int64, ranges []Range) bool {
	for _, r := range ranges {
		if r.Contains(off) {
			return true
		}
	}
	return false
}
