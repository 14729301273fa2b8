package classify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tollsimy/rapid/internal/segment"
	"github.com/tollsimy/rapid/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	rc, err := coremarkRules().Compile()
	require.NoError(t, err)
	require.NoError(t, reg.Register(rc))
	return reg
}

func testBlocks(t *testing.T, log string) *segment.BlockIter {
	t.Helper()
	c := segment.FormatContract{
		BlockMarker:       "Starting test",
		TestNumberPattern: `_([0-9]+)\s*$`,
		BenchmarkPattern:  `inject/([a-zA-Z0-9_]+)/`,
		TestNameTemplate:  "{benchmark_type}_{test_num}",
	}
	s, err := c.Compile()
	require.NoError(t, err)
	return s.Scan(strings.NewReader(log))
}

func syntheticLog(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Starting test inject/coremark/coremark_%d\n", i)
		switch i % 4 {
		case 0:
			b.WriteString("SUCCESS\n")
		case 1:
			b.WriteString("trap scause 0x5\nERROR\n")
		case 2:
			b.WriteString("timed out\n")
		case 3:
			b.WriteString("SUCCESS\nINCORRECT_RESULT\n")
		}
	}
	return b.String()
}

func TestEngine_Run(t *testing.T) {
	log := "Starting test inject/coremark/coremark_0\nSUCCESS\n" +
		"Starting test inject/coremark/coremark_1\ntrap scause 0x5\nERROR\n" +
		"Starting test with no extractable fields\nwhatever\n" +
		"Starting test inject/unknown_bench/unknown_bench_2\nSUCCESS\n"

	faults := map[int]types.FaultRecord{
		0: {CampaignID: "c", Binary: "app", ByteOffset: 10, BitOffset: 1, TestNumber: 0},
		1: {CampaignID: "c", Binary: "app", ByteOffset: 20, BitOffset: 2, TestNumber: 1},
	}

	eng := NewEngine(testRegistry(t), 2, nil)
	res, err := eng.Run(context.Background(), testBlocks(t, log), faults, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)

	// Rows come back ordered by test number, unmatched block first.
	unmatched := res.Rows[0]
	assert.Equal(t, -1, unmatched.Record.TestNumber)
	assert.Equal(t, types.StatusMissing, unmatched.Record.TopStatus)
	assert.True(t, unmatched.Record.ManualCheck)

	passed := res.Rows[1]
	assert.Equal(t, "coremark_0", passed.Record.TestName)
	assert.Equal(t, types.StatusPassed, passed.Record.TopStatus)
	assert.Equal(t, int64(10), passed.Fault.ByteOffset)

	trapped := res.Rows[2]
	assert.Equal(t, types.StatusFailed, trapped.Record.TopStatus)
	assert.Equal(t, []types.EventTag{types.TagTrap}, trapped.Record.EventTags)
	assert.Equal(t, "0x5", trapped.Record.TrapCause)

	// Registered classifiers cover coremark only; unknown benchmarks
	// degrade instead of failing the batch.
	noClassifier := res.Rows[3]
	assert.Equal(t, types.StatusMissing, noClassifier.Record.TopStatus)
	assert.True(t, noClassifier.Record.ManualCheck)

	assert.Equal(t, 4, res.Report.Total)
	assert.Equal(t, 1, res.Report.Raw[types.StatusPassed])
	assert.Equal(t, 1, res.Report.Raw[types.StatusFailed])
	assert.Equal(t, 2, res.Report.Raw[types.StatusMissing])
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	log := syntheticLog(500)

	seq, err := NewEngine(testRegistry(t), 1, nil).Run(context.Background(), testBlocks(t, log), nil, nil)
	require.NoError(t, err)
	par, err := NewEngine(testRegistry(t), 8, nil).Run(context.Background(), testBlocks(t, log), nil, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(seq.Report, par.Report); diff != "" {
		t.Errorf("parallel report diverges from sequential (-seq +par):\n%s", diff)
	}
	assert.Equal(t, seq.Rows, par.Rows)
}

func TestEngine_PanickingClassifier(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(funcClassifier{
		name: "coremark",
		fn: func(types.LogBlock, types.FaultRecord) (Outcome, error) {
			panic("boom")
		},
	}))

	log := "Starting test inject/coremark/coremark_0\nSUCCESS\n"
	res, err := NewEngine(reg, 2, nil).Run(context.Background(), testBlocks(t, log), nil, nil)
	require.NoError(t, err, "a panicking classifier must not abort the batch")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, types.StatusMissing, res.Rows[0].Record.TopStatus)
	assert.True(t, res.Rows[0].Record.ManualCheck)
}

func TestEngine_UnknownTagsDropped(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(funcClassifier{
		name: "coremark",
		fn: func(types.LogBlock, types.FaultRecord) (Outcome, error) {
			return Outcome{
				Status: types.StatusPassed,
				Tags:   []types.EventTag{types.TagTrap, "made_up"},
			}, nil
		},
	}))

	log := "Starting test inject/coremark/coremark_0\nSUCCESS\n"
	res, err := NewEngine(reg, 1, nil).Run(context.Background(), testBlocks(t, log), nil, nil)
	require.NoError(t, err)
	rec := res.Rows[0].Record
	assert.Equal(t, types.StatusPassed, rec.TopStatus)
	assert.Equal(t, []types.EventTag{types.TagTrap}, rec.EventTags)
	assert.True(t, rec.ManualCheck, "dropped tags must flag the record for review")
}

func TestEngine_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewEngine(testRegistry(t), 4, nil).Run(ctx, testBlocks(t, syntheticLog(100)), nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res, "partial state must survive cancellation")
	assert.LessOrEqual(t, res.Report.Total, 100)
}

func TestEngine_SinkReceivesRows(t *testing.T) {
	sink := &memorySink{}
	res, err := NewEngine(testRegistry(t), 2, nil).Run(context.Background(), testBlocks(t, syntheticLog(20)), nil, sink)
	require.NoError(t, err)
	assert.Equal(t, res.Rows, sink.rows)
}

type funcClassifier struct {
	name string
	fn   func(types.LogBlock, types.FaultRecord) (Outcome, error)
}

func (f funcClassifier) Name() string { return f.name }
func (f funcClassifier) Classify(b types.LogBlock, r types.FaultRecord) (Outcome, error) {
	return f.fn(b, r)
}

type memorySink struct {
	mu   sync.Mutex
	rows []Row
}

func (m *memorySink) WriteRows(_ context.Context, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}
