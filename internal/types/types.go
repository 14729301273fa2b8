// Package types holds the core domain types shared across the rapid
// pipeline: fault records produced by the injector, log blocks produced by
// the segmenter, and status records produced by classification.
package types

import "sort"

// TopStatus is the top-level classification of a single test execution.
type TopStatus string

const (
	StatusPassed  TopStatus = "passed"
	StatusFailed  TopStatus = "failed"
	StatusOutlier TopStatus = "outlier"
	StatusMissing TopStatus = "missing_status"
)

// AllStatuses lists every valid top-level status in report order.
var AllStatuses = []TopStatus{StatusPassed, StatusFailed, StatusOutlier, StatusMissing}

// Valid reports whether s is a known top-level status.
func (s TopStatus) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusOutlier, StatusMissing:
		return true
	}
	return false
}

// EventTag marks an event observed during a test execution. Tags are not
// mutually exclusive: one test may carry several.
type EventTag string

const (
	TagTrap        EventTag = "trap"
	TagHalt        EventTag = "halt"
	TagCommFailure EventTag = "comm_failure"
	TagSDC         EventTag = "SDC"
	TagExecFailure EventTag = "exec_failure"
	TagHWReset     EventTag = "hw_reset"
)

// AllTags lists every valid event tag in report order.
var AllTags = []EventTag{TagTrap, TagHalt, TagCommFailure, TagSDC, TagExecFailure, TagHWReset}

// Valid reports whether t is a known event tag.
func (t EventTag) Valid() bool {
	switch t {
	case TagTrap, TagHalt, TagCommFailure, TagSDC, TagExecFailure, TagHWReset:
		return true
	}
	return false
}

// FaultRecord describes one single-bit fault placement within a binary.
// Records are immutable once generated; the campaign manifest owns them.
type FaultRecord struct {
	CampaignID string `json:"campaign"`
	Binary     string `json:"binary"`
	ByteOffset int64  `json:"byteOffset"`
	BitOffset  uint8  `json:"bitOffset"`
	TestNumber int    `json:"testNumber"`
}

// BitPosition returns the absolute bit index of the flip within the binary.
func (f FaultRecord) BitPosition() int64 {
	return f.ByteOffset*8 + int64(f.BitOffset)
}

// LogBlock is one logical test execution extracted from a raw log.
// TestNumber is -1 and BenchmarkType is empty when the extraction patterns
// did not match the block's leading text; such blocks are still emitted and
// flagged downstream rather than dropped.
type LogBlock struct {
	TestName      string
	BenchmarkType string
	TestNumber    int
	RawText       string
	StartOffset   int64
	EndOffset     int64
}

// Matched reports whether the extraction patterns populated this block.
func (b LogBlock) Matched() bool {
	return b.TestNumber >= 0 && b.BenchmarkType != ""
}

// StatusRecord is the normalized classification of one test execution.
// It is produced from exactly one (LogBlock, FaultRecord) pair and is
// immutable once built.
type StatusRecord struct {
	TestName    string
	TestNumber  int
	TopStatus   TopStatus
	EventTags   []EventTag // set semantics: sorted, no duplicates
	TrapCause   string     // free text, meaningful only alongside TagTrap
	ManualCheck bool
}

// HasTag reports whether the record carries the given event tag.
func (r StatusRecord) HasTag(t EventTag) bool {
	for _, tag := range r.EventTags {
		if tag == t {
			return true
		}
	}
	return false
}

// NormalizeTags deduplicates and sorts a tag slice so that EventTags behaves
// as a set with a deterministic order.
func NormalizeTags(tags []EventTag) []EventTag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[EventTag]bool, len(tags))
	out := make([]EventTag, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
