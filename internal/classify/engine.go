package classify

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tollsimy/rapid/internal/aggregate"
	"github.com/tollsimy/rapid/internal/segment"
	"github.com/tollsimy/rapid/internal/types"
)

// Row joins a classified status record with the fault that produced it.
// It is the unit handed to storage.
type Row struct {
	Benchmark string
	Record    types.StatusRecord
	Fault     types.FaultRecord
}

// RowSink receives classified rows in batches. The sqlite store is the
// usual implementation.
type RowSink interface {
	WriteRows(ctx context.Context, rows []Row) error
}

// Engine classifies a stream of log blocks with a worker pool and folds
// the verdicts into a single aggregate report. A classifier failure
// never aborts the batch: the affected block is recorded as
// missing_status with the manual-check flag set.
type Engine struct {
	registry *Registry
	workers  int
	logger   *zap.Logger
}

func NewEngine(registry *Registry, workers int, logger *zap.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, workers: workers, logger: logger}
}

// Result is the outcome of one Run.
type Result struct {
	Report *aggregate.Report
	Rows   []Row
}

// Run drains the block iterator, classifies every block, and returns
// the merged report plus all rows sorted by test number. If sink is
// non-nil the rows are written to it before returning. On context
// cancellation Run stops feeding workers and returns the state merged
// so far together with ctx.Err().
func (e *Engine) Run(ctx context.Context, blocks *segment.BlockIter, faults map[int]types.FaultRecord, sink RowSink) (*Result, error) {
	in := make(chan types.LogBlock)
	partials := make([]*aggregate.Report, e.workers)
	rows := make([][]Row, e.workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < e.workers; w++ {
		w := w
		partials[w] = aggregate.New()
		g.Go(func() error {
			for block := range in {
				row := e.classifyBlock(block, faults)
				partials[w].Add(row.Record)
				rows[w] = append(rows[w], row)
			}
			return nil
		})
	}

	var feedErr error
feed:
	for {
		block, ok := blocks.Next()
		if !ok {
			feedErr = blocks.Err()
			break
		}
		select {
		case in <- block:
		case <-gctx.Done():
			feedErr = gctx.Err()
			break feed
		}
	}
	close(in)

	if err := g.Wait(); err != nil && feedErr == nil {
		feedErr = err
	}

	result := &Result{Report: aggregate.New()}
	for w := 0; w < e.workers; w++ {
		result.Report.Merge(partials[w])
		result.Rows = append(result.Rows, rows[w]...)
	}
	sort.Slice(result.Rows, func(i, j int) bool {
		a, b := result.Rows[i].Record, result.Rows[j].Record
		if a.TestNumber != b.TestNumber {
			return a.TestNumber < b.TestNumber
		}
		return a.TestName < b.TestName
	})

	if feedErr != nil {
		return result, feedErr
	}
	if sink != nil {
		if err := sink.WriteRows(ctx, result.Rows); err != nil {
			return result, fmt.Errorf("write rows: %w", err)
		}
	}
	return result, nil
}

// classifyBlock produces exactly one row per block. Every failure mode
// degrades to missing_status + manual check instead of an error.
func (e *Engine) classifyBlock(block types.LogBlock, faults map[int]types.FaultRecord) Row {
	row := Row{
		Benchmark: block.BenchmarkType,
		Record: types.StatusRecord{
			TestName:   block.TestName,
			TestNumber: block.TestNumber,
		},
	}
	if fault, ok := faults[block.TestNumber]; ok && block.TestNumber >= 0 {
		row.Fault = fault
	}

	manual := func(reason string, fields ...zap.Field) Row {
		row.Record.TopStatus = types.StatusMissing
		row.Record.EventTags = nil
		row.Record.TrapCause = ""
		row.Record.ManualCheck = true
		e.logger.Warn(reason, append(fields,
			zap.String("test", block.TestName),
			zap.Int64("offset", block.StartOffset))...)
		return row
	}

	if !block.Matched() {
		return manual("block did not match the format contract")
	}

	classifier, ok := e.registry.Lookup(block.BenchmarkType)
	if !ok {
		return manual("no classifier registered", zap.String("benchmark", block.BenchmarkType))
	}

	outcome, err := e.safeClassify(classifier, block, row.Fault)
	if err != nil {
		return manual("classifier failed", zap.Error(err))
	}
	if !outcome.Status.Valid() {
		return manual("classifier returned unknown status", zap.String("status", string(outcome.Status)))
	}

	var dropped bool
	tags := outcome.Tags[:0:len(outcome.Tags)]
	for _, t := range outcome.Tags {
		if t.Valid() {
			tags = append(tags, t)
		} else {
			dropped = true
			e.logger.Warn("dropping unknown event tag",
				zap.String("tag", string(t)),
				zap.String("test", block.TestName))
		}
	}

	row.Record.TopStatus = outcome.Status
	row.Record.EventTags = types.NormalizeTags(tags)
	row.Record.TrapCause = outcome.TrapCause
	row.Record.ManualCheck = dropped
	return row
}

// safeClassify shields the batch from panicking classifiers; plugins
// are arbitrary interpreted code.
func (e *Engine) safeClassify(c Classifier, block types.LogBlock, fault types.FaultRecord) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier %s panicked: %v", c.Name(), r)
		}
	}()
	return c.Classify(block, fault)
}
