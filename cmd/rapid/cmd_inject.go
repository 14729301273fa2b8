package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tollsimy/rapid/internal/inject"
)

var (
	injectBinary     string
	injectFlips      int
	injectSeed       int64
	injectCampaignID string
	injectExclude    []string
	injectRepeats    bool
	injectManifest   string
	injectWrite      bool
	injectOutDir     string
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Generate a fault-injection campaign manifest",
	Long: `Samples single-bit flip positions over the target binary and writes
them to a JSON manifest. With --write-binaries, one patched copy of the
binary is written per flip, named <binary>_<testNumber>.

Byte ranges can be excluded from sampling, e.g. to protect ELF headers:

  rapid inject --binary app.elf --flips 1000 --exclude 0-4096`,
	RunE: runInject,
}

func init() {
	injectCmd.Flags().StringVar(&injectBinary, "binary", "", "Target binary to inject into (required)")
	injectCmd.Flags().IntVar(&injectFlips, "flips", 0, "Number of bit flips (default from config)")
	injectCmd.Flags().Int64Var(&injectSeed, "seed", 0, "Sampling seed (default from config)")
	injectCmd.Flags().StringVar(&injectCampaignID, "campaign", "", "Campaign ID (default: random UUID)")
	injectCmd.Flags().StringSliceVar(&injectExclude, "exclude", nil, "Byte ranges to exclude, as start-end")
	injectCmd.Flags().BoolVar(&injectRepeats, "allow-repeats", false, "Allow the same bit position twice")
	injectCmd.Flags().StringVar(&injectManifest, "out", "", "Manifest path (default: <binary>_campaign.json)")
	injectCmd.Flags().BoolVar(&injectWrite, "write-binaries", false, "Write one patched binary per flip")
	injectCmd.Flags().StringVar(&injectOutDir, "outdir", "", "Directory for patched binaries (default from config)")
	_ = injectCmd.MarkFlagRequired("binary")
}

func runInject(cmd *cobra.Command, args []string) error {
	flips := injectFlips
	if flips <= 0 {
		flips = cfg.Inject.NumFlips
	}
	seed := cfg.Inject.Seed
	if cmd.Flags().Changed("seed") {
		seed = injectSeed
	}
	outDir := injectOutDir
	if outDir == "" {
		outDir = cfg.Inject.OutputDir
	}

	exclude, err := parseRanges(injectExclude)
	if err != nil {
		return err
	}
	constraints := inject.Constraints{
		Exclude:      exclude,
		AllowRepeats: injectRepeats || cfg.Inject.AllowRepeats,
		RetryBound:   cfg.Inject.RetryBound,
	}

	gen := inject.NewGenerator(seed, logger)
	records, err := gen.CampaignFromFile(injectBinary, flips, injectCampaignID, constraints)
	if err != nil {
		return err
	}

	manifest := injectManifest
	if manifest == "" {
		manifest = injectBinary + "_campaign.json"
	}
	if err := inject.WriteManifest(manifest, records); err != nil {
		return err
	}
	logger.Info("manifest written", zap.String("path", manifest), zap.Int("flips", len(records)))

	if injectWrite {
		paths, err := inject.PatchAll(&inject.FlipWriter{OutDir: outDir}, injectBinary, records)
		if err != nil {
			return err
		}
		logger.Info("patched binaries written",
			zap.String("dir", outDir),
			zap.Int("count", len(paths)))
	}

	fmt.Printf("Campaign %s: %d flips -> %s\n", records[0].CampaignID, len(records), manifest)
	return nil
}

// parseRanges converts start-end strings into exclusion ranges.
func parseRanges(specs []string) ([]inject.Range, error) {
	ranges := make([]inject.Range, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad exclude range %q, want start-end", spec)
		}
		start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad exclude range %q: %w", spec, err)
		}
		end, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad exclude range %q: %w", spec, err)
		}
		if end <= start {
			return nil, fmt.Errorf("bad exclude range %q: end must be after start", spec)
		}
		ranges = append(ranges, inject.Range{Start: start, End: end})
	}
	return ranges, nil
}
