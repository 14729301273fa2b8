package segment

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tollsimy/rapid/internal/types"
)

// Segmenter turns a raw log stream into a lazy sequence of LogBlocks.
// A Segmenter is built once from a validated contract and may be reused:
// every Scan call returns a fresh iterator, so re-scanning the same input
// reproduces the same block sequence.
type Segmenter struct {
	contract FormatContract
	numRe    *regexp.Regexp
	benchRe  *regexp.Regexp
}

// Contract returns the contract this segmenter was compiled from.
func (s *Segmenter) Contract() FormatContract { return s.contract }

// Scan begins segmenting r. Blocks are produced incrementally as the
// iterator advances, so logs larger than memory stream through without
// being held whole.
func (s *Segmenter) Scan(r io.Reader) *BlockIter {
	br := bufio.NewReaderSize(r, 64*1024)
	return &BlockIter{seg: s, r: br}
}

// BlockIter walks the blocks of one log stream.
type BlockIter struct {
	seg *Segmenter
	r   *bufio.Reader
	err error
	eof bool

	offset int64 // byte offset of the next unread line

	// pending is the marker line that opens the next block, carried over
	// from the previous Next call.
	pending       string
	pendingOffset int64
	started       bool
}

// Next returns the next block. It reports false when the stream is
// exhausted or a read error occurred; check Err afterwards.
func (it *BlockIter) Next() (types.LogBlock, bool) {
	if it.err != nil {
		return types.LogBlock{}, false
	}

	// Skip the preamble before the first marker.
	if !it.started {
		for {
			line, off, ok := it.readLine()
			if !ok {
				return types.LogBlock{}, false
			}
			if it.isMarker(line) {
				it.pending = line
				it.pendingOffset = off
				break
			}
		}
		it.started = true
	}

	if it.pending == "" {
		return types.LogBlock{}, false
	}

	header := it.pending
	start := it.pendingOffset
	it.pending = ""

	var body strings.Builder
	end := it.offset
	for {
		line, off, ok := it.readLine()
		if !ok {
			end = it.offset
			break
		}
		if it.isMarker(line) {
			it.pending = line
			it.pendingOffset = off
			end = off
			break
		}
		if strings.TrimSpace(line) != "" {
			body.WriteString(strings.TrimRight(line, "\r\n"))
			body.WriteByte('\n')
		}
		end = it.offset
	}

	return it.seg.buildBlock(header, body.String(), start, end), true
}

// Err returns the first read error other than io.EOF.
func (it *BlockIter) Err() error { return it.err }

func (it *BlockIter) isMarker(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, "\r\n"), it.seg.contract.BlockMarker)
}

// readLine returns the next line and its starting offset.
func (it *BlockIter) readLine() (string, int64, bool) {
	if it.eof {
		return "", 0, false
	}
	start := it.offset
	line, err := it.r.ReadString('\n')
	it.offset += int64(len(line))
	if err != nil {
		it.eof = true
		if err != io.EOF {
			it.err = err
			return "", 0, false
		}
		if line == "" {
			return "", 0, false
		}
	}
	return line, start, true
}

// buildBlock applies the extraction patterns to the block's leading text.
// A block whose patterns do not match still yields a LogBlock with the
// fields unset; flagging it is the classifier engine's job.
func (s *Segmenter) buildBlock(header, body string, start, end int64) types.LogBlock {
	block := types.LogBlock{
		TestNumber:  -1,
		RawText:     strings.TrimRight(body, "\n"),
		StartOffset: start,
		EndOffset:   end,
	}

	header = strings.TrimSpace(header)
	if m := s.benchRe.FindStringSubmatch(header); m != nil {
		block.BenchmarkType = strings.ToLower(m[1])
	}
	if m := s.numRe.FindStringSubmatch(header); m != nil {
		if n, ok := cleanTestNumber(m[1]); ok {
			block.TestNumber = n
		}
	}
	if block.Matched() {
		block.TestName = s.contract.TestName(block.BenchmarkType, block.TestNumber)
	}
	return block
}

// cleanTestNumber strips non-digit characters and parses what remains.
func cleanTestNumber(raw string) (int, bool) {
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}
