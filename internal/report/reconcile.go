package report

import (
	"fmt"
	"sort"

	"github.com/tollsimy/rapid/internal/aggregate"
	"github.com/tollsimy/rapid/internal/types"
)

// statusOrder fixes the row order of every per-status table.
var statusOrder = []types.TopStatus{
	types.StatusPassed,
	types.StatusFailed,
	types.StatusOutlier,
}

// tagOrder fixes the column order of the crosstab.
var tagOrder = []types.EventTag{
	types.TagTrap,
	types.TagHalt,
	types.TagCommFailure,
	types.TagSDC,
	types.TagExecFailure,
	types.TagHWReset,
}

// Reconcile builds the full summary for one benchmark. It only reads the
// report, so it is idempotent, and all orderings are fixed, so equal
// reports produce equal summaries. The overlap cross-check is exact:
// any difference between the derived overlap and the accumulated tag
// overflow produces a warning.
func Reconcile(benchmark string, rep *aggregate.Report) Summary {
	s := Summary{Benchmark: benchmark}

	s.Coverage = CoverageRow{
		Benchmark:   benchmark,
		Total:       rep.Total,
		Classified:  rep.Classified(),
		Coverage:    pct(rep.Classified(), rep.Total),
		ManualCheck: rep.ManualCheck,
		Missing:     rep.Raw[types.StatusMissing],
	}

	s.Categories = categories(rep)
	s.Hierarchy = hierarchy(rep)
	s.Overlap, s.Warnings = overlap(rep, s.Warnings)
	s.Strict, s.Warnings = strict(rep, s.Warnings)
	s.TrapCauses = trapCauses(rep)
	return s
}

func categories(rep *aggregate.Report) []CategoryRow {
	rows := []CategoryRow{
		{Category: "total_tests", Count: rep.Total, Percent: pct(rep.Total, rep.Total)},
	}
	for _, st := range statusOrder {
		rows = append(rows, CategoryRow{Category: string(st), Count: rep.Raw[st], Percent: pct(rep.Raw[st], rep.Total)})
	}
	rows = append(rows,
		CategoryRow{Category: string(types.StatusMissing), Count: rep.Raw[types.StatusMissing], Percent: pct(rep.Raw[types.StatusMissing], rep.Total)},
		CategoryRow{Category: "needs_manual_check", Count: rep.ManualCheck, Percent: pct(rep.ManualCheck, rep.Total)},
	)
	for _, tag := range tagOrder {
		rows = append(rows, CategoryRow{Category: string(tag), Count: rep.Events[tag], Percent: pct(rep.Events[tag], rep.Total)})
	}
	for _, st := range statusOrder {
		rows = append(rows, CategoryRow{
			Category: "clean_" + string(st),
			Count:    rep.Clean[st],
			Percent:  pct(rep.Clean[st], rep.Total),
		})
	}
	return rows
}

func hierarchy(rep *aggregate.Report) []HierarchyRow {
	rows := make([]HierarchyRow, 0, len(statusOrder))
	for _, st := range statusOrder {
		row := HierarchyRow{
			Status: st,
			Cells:  make(map[types.EventTag]int, len(tagOrder)),
			Clean:  rep.Clean[st],
			Raw:    rep.Raw[st],
		}
		for _, tag := range tagOrder {
			row.Cells[tag] = rep.Hierarchy[st][tag]
		}
		row.RowSum = rep.SumOfEvents(st)
		rows = append(rows, row)
	}
	return rows
}

func overlap(rep *aggregate.Report, warnings []ConsistencyWarning) ([]OverlapRow, []ConsistencyWarning) {
	rows := make([]OverlapRow, 0, len(statusOrder))
	for _, st := range statusOrder {
		row := OverlapRow{
			Status:      st,
			Raw:         rep.Raw[st],
			SumOfEvents: rep.SumOfEvents(st),
			Overlap:     rep.Overlap(st),
			TagOverflow: rep.TagOverflow[st],
		}
		row.Match = row.Overlap == row.TagOverflow
		if !row.Match {
			warnings = append(warnings, ConsistencyWarning{
				Check: "overlap",
				Message: fmt.Sprintf("%s: derived overlap %d does not match accumulated tag overflow %d",
					st, row.Overlap, row.TagOverflow),
			})
		}
		rows = append(rows, row)
	}
	return rows, warnings
}

// strict buckets the campaign the way a verification engineer reads it:
// anything that is not a clean pass is a failure of some kind, attributed
// to its single event when there is exactly one.
func strict(rep *aggregate.Report, warnings []ConsistencyWarning) (StrictFailures, []ConsistencyWarning) {
	exact := func(tag types.EventTag) int {
		total := 0
		for _, bucket := range rep.Exact {
			total += bucket[tag]
		}
		return total
	}

	sf := StrictFailures{
		Trap:          exact(types.TagTrap),
		Halt:          exact(types.TagHalt),
		CommFailure:   exact(types.TagCommFailure),
		SDC:           exact(types.TagSDC),
		ExecFailure:   exact(types.TagExecFailure),
		HWReset:       exact(types.TagHWReset),
		Uncategorized: rep.ManualCheck,
		TotalFailed:   rep.Total - rep.Clean[types.StatusPassed],
	}
	// Tests with several events, plus failed/outlier tests with no event
	// at all, have no single bucket to live in.
	cleanNonPass := rep.Clean[types.StatusFailed] + rep.Clean[types.StatusOutlier]
	sf.Others = rep.MultiEvent + cleanNonPass

	sum := sf.Trap + sf.Halt + sf.CommFailure + sf.SDC + sf.ExecFailure + sf.HWReset + sf.Others + sf.Uncategorized
	if sum != sf.TotalFailed {
		warnings = append(warnings, ConsistencyWarning{
			Check: "strict_failures",
			Message: fmt.Sprintf("category sum %d does not match total failures %d",
				sum, sf.TotalFailed),
		})
	}
	return sf, warnings
}

func trapCauses(rep *aggregate.Report) []TrapCauseRow {
	named := make(map[string]int, len(rep.TrapCauses))
	total := 0
	for cause, n := range rep.TrapCauses {
		named[TrapCauseName(cause)] += n
		total += n
	}

	rows := make([]TrapCauseRow, 0, len(named))
	for cause, n := range named {
		rows = append(rows, TrapCauseRow{Cause: cause, Count: n, Percent: pct(n, total)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Cause < rows[j].Cause
	})
	return rows
}

// pct formats n/total as a percentage with two decimals; percent strings
// are for display only and never feed back into count checks.
func pct(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}
