package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tollsimy/rapid/internal/classify"
	"github.com/tollsimy/rapid/internal/types"
)

// ResultEvent is one entry of a result's event list. Trap events carry
// the trap registers; other event types are bare markers.
type ResultEvent struct {
	Type   string `json:"type"`
	Scause string `json:"scause,omitempty"`
	Sepc   string `json:"sepc,omitempty"`
	Stval  string `json:"stval,omitempty"`
}

// ResultStatus is the classification part of one test result. A nil
// Class means the test was never classified.
type ResultStatus struct {
	Class  *string       `json:"class"`
	SDC    bool          `json:"SDC"`
	Events []ResultEvent `json:"events,omitempty"`
}

// TestResult is one test's entry in a results file.
type TestResult struct {
	Args             string       `json:"args"`
	Output           string       `json:"output"`
	Status           ResultStatus `json:"status"`
	NeedsManualCheck bool         `json:"needs_manual_check"`
}

// ResultsFile maps test names to their results. It is the interchange
// format for harnesses that classify on their own and only hand the
// verdicts over for analysis.
type ResultsFile map[string]TestResult

// BenchmarkFromFilename derives the benchmark type from a results file
// name: everything before the first underscore of the base name.
func BenchmarkFromFilename(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i > 0 {
		return strings.ToLower(base[:i])
	}
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ReadResults loads a results file from disk.
func ReadResults(path string) (ResultsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var rf ResultsFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse results file %s: %w", path, err)
	}
	return rf, nil
}

// WriteResults persists row verdicts in the results interchange format.
func WriteResults(path string, rows []classify.Row) error {
	rf := make(ResultsFile, len(rows))
	for _, row := range rows {
		rf[row.Record.TestName] = toResult(row.Record)
	}
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write results file: %w", err)
	}
	return nil
}

// ImportResults converts a results file into rows and writes them to the
// store under the given benchmark. It returns the number of imported
// tests.
func (s *Store) ImportResults(ctx context.Context, benchmark string, rf ResultsFile) (int, error) {
	rows := make([]classify.Row, 0, len(rf))
	for name, result := range rf {
		rows = append(rows, classify.Row{
			Benchmark: benchmark,
			Record:    toRecord(name, result),
		})
	}
	// Map iteration is random; keep imports reproducible.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Record.TestNumber != rows[j].Record.TestNumber {
			return rows[i].Record.TestNumber < rows[j].Record.TestNumber
		}
		return rows[i].Record.TestName < rows[j].Record.TestName
	})
	if err := s.WriteRows(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func toRecord(name string, result TestResult) types.StatusRecord {
	rec := types.StatusRecord{
		TestName:    name,
		TestNumber:  testNumberFromName(name),
		ManualCheck: result.NeedsManualCheck,
		TopStatus:   types.StatusMissing,
	}
	if result.Status.Class != nil {
		status := types.TopStatus(*result.Status.Class)
		if status.Valid() {
			rec.TopStatus = status
		} else {
			rec.ManualCheck = true
		}
	}
	if result.Status.SDC {
		rec.EventTags = append(rec.EventTags, types.TagSDC)
	}
	for _, ev := range result.Status.Events {
		switch ev.Type {
		case "trap":
			rec.EventTags = append(rec.EventTags, types.TagTrap)
			rec.TrapCause = ev.Scause
		case "halt":
			rec.EventTags = append(rec.EventTags, types.TagHalt)
		case "comm_failure":
			rec.EventTags = append(rec.EventTags, types.TagCommFailure)
		case "exec_failure":
			rec.EventTags = append(rec.EventTags, types.TagExecFailure)
		case "hw_reset", "hw-reset":
			rec.EventTags = append(rec.EventTags, types.TagHWReset)
		default:
			rec.ManualCheck = true
		}
	}
	rec.EventTags = types.NormalizeTags(rec.EventTags)
	return rec
}

func toResult(rec types.StatusRecord) TestResult {
	result := TestResult{
		NeedsManualCheck: rec.ManualCheck,
	}
	if rec.TopStatus != types.StatusMissing {
		class := string(rec.TopStatus)
		result.Status.Class = &class
	}
	for _, tag := range rec.EventTags {
		switch tag {
		case types.TagSDC:
			result.Status.SDC = true
		case types.TagTrap:
			result.Status.Events = append(result.Status.Events, ResultEvent{Type: "trap", Scause: rec.TrapCause})
		default:
			result.Status.Events = append(result.Status.Events, ResultEvent{Type: string(tag)})
		}
	}
	return result
}

// testNumberFromName extracts the trailing _<n> suffix, -1 if absent.
func testNumberFromName(name string) int {
	i := strings.LastIndexByte(name, '_')
	if i < 0 || i == len(name)-1 {
		return -1
	}
	n := 0
	for _, r := range name[i+1:] {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
