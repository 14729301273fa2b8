// Package segment splits raw execution logs into per-test blocks using a
// caller-supplied format contract.
package segment

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholders the test-name template must carry.
const (
	placeholderBenchmark = "{benchmark_type}"
	placeholderTestNum   = "{test_num}"
)

// FormatContract describes how a raw log is shaped. All four fields are
// required; validation happens eagerly in Compile, before any log is read.
type FormatContract struct {
	// BlockMarker is the literal prefix of a line that starts a test block.
	BlockMarker string `yaml:"block_marker"`

	// TestNumberPattern extracts the test number from a block's leading
	// text. Its first capture group must hold the number.
	TestNumberPattern string `yaml:"test_number_pattern"`

	// BenchmarkPattern extracts the benchmark type from a block's leading
	// text. Its first capture group must hold the type.
	BenchmarkPattern string `yaml:"benchmark_pattern"`

	// TestNameTemplate builds the test name. It must contain both the
	// {benchmark_type} and {test_num} placeholders.
	TestNameTemplate string `yaml:"test_name_template"`
}

// ContractError reports an invalid or missing format contract field.
// It is a startup-time, fatal error: no block-level recovery applies.
type ContractError struct {
	Field  string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("invalid format contract: field %q: %s", e.Field, e.Reason)
}

// LoadContract reads a format contract from a YAML file.
func LoadContract(path string) (FormatContract, error) {
	var c FormatContract
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read format contract: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse format contract: %w", err)
	}
	return c, nil
}

// Compile validates the contract and returns a Segmenter for it.
func (c FormatContract) Compile() (*Segmenter, error) {
	if c.BlockMarker == "" {
		return nil, &ContractError{Field: "block_marker", Reason: "required"}
	}
	if c.TestNumberPattern == "" {
		return nil, &ContractError{Field: "test_number_pattern", Reason: "required"}
	}
	if c.BenchmarkPattern == "" {
		return nil, &ContractError{Field: "benchmark_pattern", Reason: "required"}
	}
	if c.TestNameTemplate == "" {
		return nil, &ContractError{Field: "test_name_template", Reason: "required"}
	}
	if !strings.Contains(c.TestNameTemplate, placeholderBenchmark) ||
		!strings.Contains(c.TestNameTemplate, placeholderTestNum) {
		return nil, &ContractError{
			Field:  "test_name_template",
			Reason: fmt.Sprintf("must contain %s and %s", placeholderBenchmark, placeholderTestNum),
		}
	}

	numRe, err := regexp.Compile(c.TestNumberPattern)
	if err != nil {
		return nil, &ContractError{Field: "test_number_pattern", Reason: err.Error()}
	}
	if numRe.NumSubexp() < 1 {
		return nil, &ContractError{Field: "test_number_pattern", Reason: "needs a capture group for the number"}
	}
	benchRe, err := regexp.Compile(c.BenchmarkPattern)
	if err != nil {
		return nil, &ContractError{Field: "benchmark_pattern", Reason: err.Error()}
	}
	if benchRe.NumSubexp() < 1 {
		return nil, &ContractError{Field: "benchmark_pattern", Reason: "needs a capture group for the type"}
	}

	return &Segmenter{contract: c, numRe: numRe, benchRe: benchRe}, nil
}

// TestName expands the contract's template for a benchmark type and number.
func (c FormatContract) TestName(benchmarkType string, testNumber int) string {
	r := strings.NewReplacer(
		placeholderBenchmark, benchmarkType,
		placeholderTestNum, fmt.Sprintf("%d", testNumber),
	)
	return r.Replace(c.TestNameTemplate)
}
