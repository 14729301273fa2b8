package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tollsimy/rapid/internal/types"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// textTable renders a titled table with column widths sized to content.
type textTable struct {
	title   string
	headers []string
	rows    [][]string
}

func (t *textTable) add(cells ...string) { t.rows = append(t.rows, cells) }

func (t *textTable) render() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(titleStyle.Render(t.title))
		sb.WriteByte('\n')
	}
	for i, h := range t.headers {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("-", sum(widths)))
	sb.WriteByte('\n')
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func sum(ns []int) int {
	total := 0
	for _, n := range ns {
		total += n
	}
	return total
}

// Render formats the whole summary for the terminal: coverage, the
// verification categories, the status×event crosstab, the overlap
// cross-check, the strict failures breakdown, the trap-cause breakdown,
// and any consistency warnings.
func Render(s Summary) string {
	sections := []string{
		renderCoverage(s),
		renderCategories(s),
		renderHierarchy(s),
		renderOverlap(s),
		renderStrict(s),
	}
	if trap := renderTrapCauses(s); trap != "" {
		sections = append(sections, trap)
	}
	if warn := renderWarnings(s); warn != "" {
		sections = append(sections, warn)
	}
	return strings.Join(sections, "\n")
}

func renderCoverage(s Summary) string {
	t := &textTable{
		title:   "Coverage",
		headers: []string{"Benchmark", "Total Tests", "Classified", "Coverage", "Manual Check", "Missing Status"},
	}
	c := s.Coverage
	t.add(c.Benchmark, itoa(c.Total), itoa(c.Classified), c.Coverage, itoa(c.ManualCheck), itoa(c.Missing))
	return t.render()
}

func renderCategories(s Summary) string {
	t := &textTable{
		title:   "Status Verification",
		headers: []string{"Category", "Count", "Percentage"},
	}
	for _, row := range s.Categories {
		t.add(row.Category, itoa(row.Count), row.Percent)
	}
	return t.render()
}

func renderHierarchy(s Summary) string {
	headers := []string{"Status/Event"}
	for _, tag := range tagOrder {
		headers = append(headers, string(tag))
	}
	headers = append(headers, "Clean", "Row Sum", "Raw Total")

	t := &textTable{title: "Status × Event Crosstab", headers: headers}
	for _, row := range s.Hierarchy {
		cells := []string{string(row.Status)}
		for _, tag := range tagOrder {
			cells = append(cells, itoa(row.Cells[tag]))
		}
		cells = append(cells, itoa(row.Clean), itoa(row.RowSum), itoa(row.Raw))
		t.add(cells...)
	}
	return t.render()
}

func renderOverlap(s Summary) string {
	t := &textTable{
		title:   "Overlapping Events",
		headers: []string{"Category", "Raw Total", "Sum of Events", "Overlap", "Tag Overflow", "Match?"},
	}
	for _, row := range s.Overlap {
		mark := "ok"
		if !row.Match {
			mark = "MISMATCH"
		}
		t.add(string(row.Status), itoa(row.Raw), itoa(row.SumOfEvents), itoa(row.Overlap), itoa(row.TagOverflow), mark)
	}
	return t.render()
}

func renderStrict(s Summary) string {
	t := &textTable{
		title: "Strict Failures",
		headers: []string{
			string(types.TagTrap), string(types.TagHalt), string(types.TagCommFailure),
			string(types.TagSDC), string(types.TagExecFailure), string(types.TagHWReset),
			"others", "uncategorized", "total",
		},
	}
	sf := s.Strict
	t.add(itoa(sf.Trap), itoa(sf.Halt), itoa(sf.CommFailure), itoa(sf.SDC),
		itoa(sf.ExecFailure), itoa(sf.HWReset), itoa(sf.Others), itoa(sf.Uncategorized), itoa(sf.TotalFailed))

	total := s.Coverage.Total
	t.add(pct(sf.Trap, total), pct(sf.Halt, total), pct(sf.CommFailure, total), pct(sf.SDC, total),
		pct(sf.ExecFailure, total), pct(sf.HWReset, total), pct(sf.Others, total),
		pct(sf.Uncategorized, total), pct(sf.TotalFailed, total))
	return t.render()
}

func renderTrapCauses(s Summary) string {
	if len(s.TrapCauses) == 0 {
		return ""
	}
	t := &textTable{
		title:   "Trap Causes Breakdown",
		headers: []string{"Trap Cause", "Count", "% of Traps"},
	}
	total := 0
	for _, row := range s.TrapCauses {
		t.add(row.Cause, itoa(row.Count), row.Percent)
		total += row.Count
	}
	t.add("TOTAL TRAPS", itoa(total), "100.00%")
	return t.render()
}

func renderWarnings(s Summary) string {
	if len(s.Warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(warnStyle.Render("Consistency Warnings"))
	sb.WriteByte('\n')
	for _, w := range s.Warnings {
		fmt.Fprintf(&sb, "  [%s] %s\n", w.Check, w.Message)
	}
	return sb.String()
}

func itoa(n int) string { return strconv.Itoa(n) }
