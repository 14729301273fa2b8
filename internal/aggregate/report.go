// Package aggregate folds streams of status records into nested counts.
//
// A Report carries several counting schemes over the same record stream:
// raw per-status counts, per-tag event counts, a status×tag hierarchy,
// exact singleton buckets, and the multi/no-event buckets. All schemes are
// updated together inside Add, and Merge is associative and commutative, so
// workers can accumulate private partials in any order and fold them into
// one total without changing the result.
package aggregate

import "github.com/tollsimy/rapid/internal/types"

// Report holds the nested counts for one record stream.
// Overlap counts are not stored: they are derived on demand from the
// hierarchy and raw schemes so they cannot drift.
type Report struct {
	// Total is the number of records folded in, independent of status.
	Total int

	// Raw counts each record once under its top status.
	Raw map[types.TopStatus]int

	// Events counts each tag occurrence; a record with two tags increments
	// two counters, so event totals may exceed Total.
	Events map[types.EventTag]int

	// Hierarchy counts the Cartesian pairing of a record's status with each
	// of its tags.
	Hierarchy map[types.TopStatus]map[types.EventTag]int

	// Exact counts records whose tag set is exactly the singleton {tag},
	// keyed by status then tag.
	Exact map[types.TopStatus]map[types.EventTag]int

	// Clean counts records with an empty tag set, per status.
	Clean map[types.TopStatus]int

	// TagOverflow accumulates, per status, how many extra tag slots records
	// with more than one tag occupied (len(tags)-1 each). It is an
	// independent scheme the reconciler checks the derived overlap against.
	TagOverflow map[types.TopStatus]int

	// MultiEvent counts records carrying more than one tag.
	MultiEvent int

	// ManualCheck counts records flagged for manual follow-up.
	ManualCheck int

	// TrapCauses counts trap records by their free-text cause.
	TrapCauses map[string]int
}

// New returns an empty report.
func New() *Report {
	return &Report{
		Raw:         make(map[types.TopStatus]int),
		Events:      make(map[types.EventTag]int),
		Hierarchy:   make(map[types.TopStatus]map[types.EventTag]int),
		Exact:       make(map[types.TopStatus]map[types.EventTag]int),
		Clean:       make(map[types.TopStatus]int),
		TagOverflow: make(map[types.TopStatus]int),
		TrapCauses:  make(map[string]int),
	}
}

// Add folds one status record into the report. Every counting scheme is
// updated here and nowhere else.
func (r *Report) Add(rec types.StatusRecord) {
	r.Total++
	r.Raw[rec.TopStatus]++

	if rec.ManualCheck {
		r.ManualCheck++
	}

	switch n := len(rec.EventTags); {
	case n == 0:
		r.Clean[rec.TopStatus]++
	case n == 1:
		bucket := r.Exact[rec.TopStatus]
		if bucket == nil {
			bucket = make(map[types.EventTag]int)
			r.Exact[rec.TopStatus] = bucket
		}
		bucket[rec.EventTags[0]]++
	default:
		r.MultiEvent++
		r.TagOverflow[rec.TopStatus] += n - 1
	}

	for _, tag := range rec.EventTags {
		r.Events[tag]++
		row := r.Hierarchy[rec.TopStatus]
		if row == nil {
			row = make(map[types.EventTag]int)
			r.Hierarchy[rec.TopStatus] = row
		}
		row[tag]++
	}

	if rec.HasTag(types.TagTrap) && rec.TrapCause != "" {
		r.TrapCauses[rec.TrapCause]++
	}
}

// Merge folds other into r. Merge is associative and commutative; other is
// not modified.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Total += other.Total
	r.MultiEvent += other.MultiEvent
	r.ManualCheck += other.ManualCheck
	for s, n := range other.Raw {
		r.Raw[s] += n
	}
	for t, n := range other.Events {
		r.Events[t] += n
	}
	for s, n := range other.Clean {
		r.Clean[s] += n
	}
	for s, n := range other.TagOverflow {
		r.TagOverflow[s] += n
	}
	for s, row := range other.Hierarchy {
		dst := r.Hierarchy[s]
		if dst == nil {
			dst = make(map[types.EventTag]int)
			r.Hierarchy[s] = dst
		}
		for t, n := range row {
			dst[t] += n
		}
	}
	for s, bucket := range other.Exact {
		dst := r.Exact[s]
		if dst == nil {
			dst = make(map[types.EventTag]int)
			r.Exact[s] = dst
		}
		for t, n := range bucket {
			dst[t] += n
		}
	}
	for cause, n := range other.TrapCauses {
		r.TrapCauses[cause] += n
	}
}

// NoEvent returns how many records carried an empty tag set.
func (r *Report) NoEvent() int {
	total := 0
	for _, n := range r.Clean {
		total += n
	}
	return total
}

// SumOfEvents returns the row sum for status s: every hierarchy cell plus
// the clean bucket. A record with k tags contributes k, a record with no
// tags contributes 1 through the clean bucket.
func (r *Report) SumOfEvents(s types.TopStatus) int {
	total := r.Clean[s]
	for _, n := range r.Hierarchy[s] {
		total += n
	}
	return total
}

// Overlap returns, for status s, how many times tests were double-counted
// across multiple tags: the row sum minus the raw count. Derived, never
// accumulated.
func (r *Report) Overlap(s types.TopStatus) int {
	return r.SumOfEvents(s) - r.Raw[s]
}

// Classified returns how many records carried a real status rather than
// missing_status.
func (r *Report) Classified() int {
	return r.Total - r.Raw[types.StatusMissing]
}
