package aggregate

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tollsimy/rapid/internal/types"
)

func record(status types.TopStatus, tags ...types.EventTag) types.StatusRecord {
	return types.StatusRecord{TopStatus: status, EventTags: types.NormalizeTags(tags)}
}

func TestAdd_CountingRules(t *testing.T) {
	r := New()
	r.Add(record(types.StatusPassed))
	r.Add(record(types.StatusPassed, types.TagTrap))
	r.Add(record(types.StatusFailed, types.TagTrap, types.TagHalt))
	r.Add(types.StatusRecord{TopStatus: types.StatusMissing, ManualCheck: true})

	if r.Total != 4 {
		t.Errorf("Total = %d, want 4", r.Total)
	}
	if r.Raw[types.StatusPassed] != 2 {
		t.Errorf("Raw[passed] = %d, want 2", r.Raw[types.StatusPassed])
	}
	// Two tags on one record increment two event counters.
	if r.Events[types.TagTrap] != 2 {
		t.Errorf("Events[trap] = %d, want 2", r.Events[types.TagTrap])
	}
	if r.Events[types.TagHalt] != 1 {
		t.Errorf("Events[halt] = %d, want 1", r.Events[types.TagHalt])
	}
	if r.Hierarchy[types.StatusFailed][types.TagTrap] != 1 {
		t.Errorf("Hierarchy[failed][trap] = %d, want 1", r.Hierarchy[types.StatusFailed][types.TagTrap])
	}
	// Exact bucket only for singleton tag sets.
	if r.Exact[types.StatusPassed][types.TagTrap] != 1 {
		t.Errorf("Exact[passed][trap] = %d, want 1", r.Exact[types.StatusPassed][types.TagTrap])
	}
	if r.Exact[types.StatusFailed][types.TagTrap] != 0 {
		t.Errorf("multi-tag record must not land in an exact bucket")
	}
	if r.MultiEvent != 1 {
		t.Errorf("MultiEvent = %d, want 1", r.MultiEvent)
	}
	if r.NoEvent() != 2 {
		t.Errorf("NoEvent = %d, want 2", r.NoEvent())
	}
	if r.ManualCheck != 1 {
		t.Errorf("ManualCheck = %d, want 1", r.ManualCheck)
	}
}

func TestTrapCauses(t *testing.T) {
	r := New()
	r.Add(types.StatusRecord{
		TopStatus: types.StatusFailed,
		EventTags: []types.EventTag{types.TagTrap},
		TrapCause: "Load access fault",
	})
	r.Add(types.StatusRecord{
		TopStatus: types.StatusFailed,
		EventTags: []types.EventTag{types.TagHalt},
		TrapCause: "ignored without trap tag",
	})
	if r.TrapCauses["Load access fault"] != 1 {
		t.Errorf("TrapCauses = %v, want one load access fault", r.TrapCauses)
	}
	if len(r.TrapCauses) != 1 {
		t.Errorf("a cause without the trap tag must not be counted: %v", r.TrapCauses)
	}
}

// syntheticStream builds a deterministic pseudo-random stream of records
// covering every status and tag combination shape.
func syntheticStream(n int, seed int64) []types.StatusRecord {
	rng := rand.New(rand.NewSource(seed))
	statuses := types.AllStatuses
	out := make([]types.StatusRecord, 0, n)
	for i := 0; i < n; i++ {
		var tags []types.EventTag
		for _, tag := range types.AllTags {
			if rng.Intn(4) == 0 {
				tags = append(tags, tag)
			}
		}
		out = append(out, types.StatusRecord{
			TestNumber:  i,
			TopStatus:   statuses[rng.Intn(len(statuses))],
			EventTags:   types.NormalizeTags(tags),
			ManualCheck: rng.Intn(10) == 0,
		})
	}
	return out
}

func TestMerge_AssociativeCommutative(t *testing.T) {
	records := syntheticStream(500, 42)

	sequential := New()
	for _, rec := range records {
		sequential.Add(rec)
	}

	// Partition into three partials and merge in two different orders.
	parts := []*Report{New(), New(), New()}
	for i, rec := range records {
		parts[i%3].Add(rec)
	}

	abc := New()
	abc.Merge(parts[0])
	abc.Merge(parts[1])
	abc.Merge(parts[2])

	cba := New()
	cba.Merge(parts[2])
	cba.Merge(parts[1])
	cba.Merge(parts[0])

	if diff := cmp.Diff(sequential, abc); diff != "" {
		t.Errorf("merged report differs from sequential (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(abc, cba); diff != "" {
		t.Errorf("merge order changed the result (-abc +cba):\n%s", diff)
	}
}

func TestOverlapIdentity(t *testing.T) {
	r := New()
	for _, rec := range syntheticStream(1000, 7) {
		r.Add(rec)
	}
	for _, s := range types.AllStatuses {
		if got, want := r.Overlap(s), r.TagOverflow[s]; got != want {
			t.Errorf("Overlap(%s) = %d, want %d", s, got, want)
		}
	}
}

func TestAggregateScenario(t *testing.T) {
	r := New()
	r.Add(record(types.StatusPassed, types.TagTrap))
	for i := 0; i < 3753; i++ {
		r.Add(record(types.StatusPassed))
	}
	for i := 0; i < 341; i++ {
		r.Add(record(types.StatusFailed, types.TagTrap))
	}
	for i := 0; i < 5297; i++ {
		r.Add(record(types.StatusFailed, types.TagHalt))
	}
	// Varied remainder of 608, including failed tests carrying two
	// tags and one more passed test.
	for i := 0; i < 599; i++ {
		r.Add(record(types.StatusOutlier, types.TagSDC))
	}
	for i := 0; i < 8; i++ {
		r.Add(record(types.StatusFailed, types.TagTrap, types.TagCommFailure))
	}
	r.Add(record(types.StatusPassed, types.TagHWReset))

	if r.Raw[types.StatusPassed] != 3755 {
		t.Errorf("Raw[passed] = %d, want 3755", r.Raw[types.StatusPassed])
	}
	if r.Events[types.TagTrap] != 1+341+8 {
		t.Errorf("Events[trap] = %d, want %d", r.Events[types.TagTrap], 1+341+8)
	}
	// Each failed record with two tags was double-counted once.
	if got := r.Overlap(types.StatusFailed); got != 8 {
		t.Errorf("Overlap(failed) = %d, want 8", got)
	}
	if got := r.Overlap(types.StatusPassed); got != 0 {
		t.Errorf("Overlap(passed) = %d, want 0", got)
	}
}
