// Package report reconciles an aggregate report's counting schemes into
// render-ready tables and consistency warnings. Reconciliation is a pure
// read-side view: it never mutates the report, so running it twice yields
// the same summary.
package report

import "github.com/tollsimy/rapid/internal/types"

// CoverageRow summarizes how much of a campaign was classified.
type CoverageRow struct {
	Benchmark   string
	Total       int
	Classified  int
	Coverage    string
	ManualCheck int
	Missing     int
}

// CategoryRow is one line of the verification table: a named count with
// its share of the total.
type CategoryRow struct {
	Category string
	Count    int
	Percent  string
}

// HierarchyRow is one crosstab line: a status against every event tag,
// the clean bucket, the row sum, and the raw status count the row sum is
// checked against.
type HierarchyRow struct {
	Status types.TopStatus
	Cells  map[types.EventTag]int
	Clean  int
	RowSum int
	Raw    int
}

// OverlapRow cross-checks the derived overlap of one status against the
// independently accumulated tag overflow.
type OverlapRow struct {
	Status      types.TopStatus
	Raw         int
	SumOfEvents int
	Overlap     int
	TagOverflow int
	Match       bool
}

// StrictFailures buckets every non-clean-pass test by its single
// dominant event. Tests with several events land in Others; tests
// needing manual review land in Uncategorized.
type StrictFailures struct {
	Trap          int
	Halt          int
	CommFailure   int
	SDC           int
	ExecFailure   int
	HWReset       int
	Others        int
	Uncategorized int
	TotalFailed   int
}

// TrapCauseRow is one line of the trap-cause breakdown.
type TrapCauseRow struct {
	Cause   string
	Count   int
	Percent string
}

// ConsistencyWarning flags a reconciliation mismatch. Warnings are
// informational; they never abort analysis.
type ConsistencyWarning struct {
	Check   string
	Message string
}

// Summary is the full reconciled view of one benchmark's report.
type Summary struct {
	Benchmark  string
	Coverage   CoverageRow
	Categories []CategoryRow
	Hierarchy  []HierarchyRow
	Overlap    []OverlapRow
	Strict     StrictFailures
	TrapCauses []TrapCauseRow
	Warnings   []ConsistencyWarning
}
