// Package classify turns segmented log blocks into status records. The
// mapping from raw block text to a verdict is benchmark-specific, so
// classifiers are looked up per block in a registry keyed by benchmark
// type. Classifiers can be defined declaratively as YAML rule sets or
// loaded at runtime as interpreted Go plugins.
package classify

import (
	"github.com/tollsimy/rapid/internal/types"
)

// Outcome is a classifier's verdict for one log block.
type Outcome struct {
	Status    types.TopStatus
	Tags      []types.EventTag
	TrapCause string
}

// Classifier decides the outcome of a single test run from its log
// block and the fault that was injected. Implementations must be safe
// for concurrent use: the engine calls Classify from multiple workers.
type Classifier interface {
	// Name returns the benchmark type this classifier handles,
	// matched case-insensitively against LogBlock.BenchmarkType.
	Name() string
	Classify(block types.LogBlock, fault types.FaultRecord) (Outcome, error)
}
