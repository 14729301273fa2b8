package inject

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaign_Deterministic(t *testing.T) {
	a, err := NewGenerator(42, nil).Campaign("app.bin", 4096, 100, "camp-a", Constraints{})
	require.NoError(t, err)
	b, err := NewGenerator(42, nil).Campaign("app.bin", 4096, 100, "camp-a", Constraints{})
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must reproduce the campaign")

	c, err := NewGenerator(43, nil).Campaign("app.bin", 4096, 100, "camp-a", Constraints{})
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different seed should change the campaign")
}

func TestCampaign_SortedAndNumbered(t *testing.T) {
	recs, err := NewGenerator(1, nil).Campaign("app.bin", 1024, 50, "", Constraints{})
	require.NoError(t, err)
	require.Len(t, recs, 50)

	sorted := sort.SliceIsSorted(recs, func(i, j int) bool {
		if recs[i].ByteOffset != recs[j].ByteOffset {
			return recs[i].ByteOffset < recs[j].ByteOffset
		}
		return recs[i].BitOffset < recs[j].BitOffset
	})
	assert.True(t, sorted, "records must be ordered by (byteOffset, bitOffset)")

	for i, r := range recs {
		assert.Equal(t, i, r.TestNumber)
		assert.NotEmpty(t, r.CampaignID)
	}
}

func TestCampaign_NoRepeats(t *testing.T) {
	// 8 bytes * 8 bits = 64 positions; ask for all of them.
	recs, err := NewGenerator(7, nil).Campaign("tiny.bin", 8, 64, "", Constraints{})
	require.NoError(t, err)

	seen := map[int64]struct{}{}
	for _, r := range recs {
		pos := r.BitPosition()
		_, dup := seen[pos]
		assert.False(t, dup, "position %d drawn twice", pos)
		seen[pos] = struct{}{}
	}
}

func TestCampaign_ExhaustedSpace(t *testing.T) {
	// 64 positions but 65 flips requested.
	_, err := NewGenerator(7, nil).Campaign("tiny.bin", 8, 65, "", Constraints{RetryBound: 200})
	var exhausted *ExhaustedSpaceError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 65, exhausted.Requested)
	assert.Equal(t, 64, exhausted.Placed)
}

func TestCampaign_Exclusions(t *testing.T) {
	excl := Range{Start: 0, End: 512}
	recs, err := NewGenerator(3, nil).Campaign("app.bin", 1024, 200, "", Constraints{
		Exclude: []Range{excl},
	})
	require.NoError(t, err)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.ByteOffset, int64(512), "offset %d lands in excluded range", r.ByteOffset)
	}
}

func TestCampaign_FullyExcluded(t *testing.T) {
	_, err := NewGenerator(3, nil).Campaign("app.bin", 1024, 10, "", Constraints{
		Exclude:    []Range{{Start: 0, End: 1024}},
		RetryBound: 50,
	})
	var exhausted *ExhaustedSpaceError
	assert.ErrorAs(t, err, &exhausted)
}

func TestCampaign_Validation(t *testing.T) {
	g := NewGenerator(1, nil)
	_, err := g.Campaign("app.bin", 0, 10, "", Constraints{})
	assert.Error(t, err)
	_, err = g.Campaign("app.bin", 1024, 0, "", Constraints{})
	assert.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign.json")

	recs, err := NewGenerator(9, nil).Campaign("app.bin", 2048, 25, "camp-rt", Constraints{})
	require.NoError(t, err)

	require.NoError(t, WriteManifest(path, recs))
	back, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, recs, back)

	idx := Index(back)
	require.Len(t, idx, 25)
	assert.Equal(t, recs[3], idx[3])
}

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
