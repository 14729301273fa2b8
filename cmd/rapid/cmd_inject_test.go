package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tollsimy/rapid/internal/config"
	"github.com/tollsimy/rapid/internal/inject"
)

func TestRunInject_ExplicitZeroSeed(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "app.bin")
	require.NoError(t, os.WriteFile(bin, make([]byte, 4096), 0o755))

	cfg = config.DefaultConfig()
	cfg.Inject.Seed = 42
	logger = zap.NewNop()

	manifest := filepath.Join(dir, "campaign.json")
	require.NoError(t, injectCmd.Flags().Set("binary", bin))
	require.NoError(t, injectCmd.Flags().Set("flips", "10"))
	require.NoError(t, injectCmd.Flags().Set("seed", "0"))
	require.NoError(t, injectCmd.Flags().Set("campaign", "seed-check"))
	require.NoError(t, injectCmd.Flags().Set("out", manifest))

	require.NoError(t, runInject(injectCmd, nil))

	got, err := inject.ReadManifest(manifest)
	require.NoError(t, err)

	// Seed 0 was given explicitly, so the config seed must not win.
	want, err := inject.NewGenerator(0, nil).CampaignFromFile(bin, 10, "seed-check",
		inject.Constraints{RetryBound: cfg.Inject.RetryBound})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRanges(t *testing.T) {
	ranges, err := parseRanges([]string{"0-4096", "0x100-0x200"})
	require.NoError(t, err)
	assert.Equal(t, []inject.Range{{Start: 0, End: 4096}, {Start: 0x100, End: 0x200}}, ranges)

	for _, bad := range []string{"4096", "10-5", "a-b"} {
		_, err := parseRanges([]string{bad})
		assert.Error(t, err, "range %q should be rejected", bad)
	}
}
