// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package processor reads one file with a size-appropriate strategy and
// produces its ordered match list with accurate line numbers.
//
// Files under 32 KiB are loaded whole; files up to 10 MiB stream through a
// buffered reader with a reused line buffer; larger files are memory-mapped
// and, when no context lines are requested, scanned in line-aligned chunks
// in parallel.
package processor

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/petar-djukic/goscout/internal/matcher"
	"github.com/petar-djukic/goscout/internal/metrics"
	"github.com/petar-djukic/goscout/pkg/logging"
	"github.com/petar-djukic/goscout/pkg/types"
)

const bufferCapacity = 64 * 1024

// Config configures a FileProcessor. One processor serves many files and is
// safe for concurrent use.
type Config struct {
	Set           *matcher.Set
	ContextBefore int
	ContextAfter  int
	Encoding      types.EncodingMode
	Metrics       *metrics.MemoryMetrics
	Logger        *slog.Logger
}

// FileProcessor dispatches each file to the most efficient reader.
type FileProcessor struct {
	set           *matcher.Set
	contextBefore int
	contextAfter  int
	encoding      types.EncodingMode
	metrics       *metrics.MemoryMetrics
	log           *slog.Logger
}

// New builds a FileProcessor from the config.
func New(cfg Config) *FileProcessor {
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &FileProcessor{
		set:           cfg.Set,
		contextBefore: cfg.ContextBefore,
		contextAfter:  cfg.ContextAfter,
		encoding:      cfg.Encoding,
		metrics:       m,
		log:           logging.OrDefault(cfg.Logger),
	}
}

// ProcessFile scans one file and returns its matches. The strategy is
// chosen by file size; a metadata failure downgrades to the buffered
// reader.
func (p *FileProcessor) ProcessFile(ctx context.Context, path string) (types.FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		p.log.Warn("stat failed, using buffered strategy", "path", path, "error", err)
		return p.processBuffered(ctx, path)
	}

	size := info.Size()
	p.metrics.RecordFileProcessing(size)

	switch {
	case size < metrics.SmallFileThreshold:
		return p.processSmall(ctx, path)
	case size >= metrics.LargeFileThreshold:
		return p.processMmap(ctx, path, size)
	default:
		return p.processBuffered(ctx, path)
	}
}

// wrapOpenErr classifies open/read failures so callers can test with
// errors.Is against fs.ErrNotExist and fs.ErrPermission.
func wrapOpenErr(path string, err error) error {
	return &types.FileError{Path: path, Err: err}
}

func (p *FileProcessor) processSmall(ctx context.Context, path string) (types.FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.FileResult{Path: path}, wrapOpenErr(path, err)
	}
	p.metrics.RecordAllocation(uint64(len(data)))
	defer p.metrics.RecordDeallocation(uint64(len(data)))

	st := p.newScan(path)
	if err := st.scanBuffer(ctx, data, 1, 0); err != nil {
		return types.FileResult{Path: path}, err
	}
	return st.result(int64(len(data))), nil
}

func (p *FileProcessor) processBuffered(ctx context.Context, path string) (types.FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.FileResult{Path: path}, wrapOpenErr(path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, bufferCapacity)
	st := p.newScan(path)

	var lineBuf []byte // reused across lines
	lineNumber := 0
	var offset int64

	for {
		if err := ctx.Err(); err != nil {
			return types.FileResult{Path: path}, err
		}

		lineBuf = lineBuf[:0]
		line, readErr := readLine(reader, &lineBuf)
		if len(line) == 0 && readErr != nil {
			if readErr == io.EOF {
				break
			}
			return types.FileResult{Path: path}, wrapOpenErr(path, readErr)
		}

		lineNumber++
		consumed := len(line)
		line = trimTerminator(line)
		if err := st.line(lineNumber, line, offset); err != nil {
			return types.FileResult{Path: path}, err
		}
		offset += int64(consumed)

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return types.FileResult{Path: path}, wrapOpenErr(path, readErr)
		}
	}

	return st.result(offset), nil
}

func (p *FileProcessor) processMmap(ctx context.Context, path string, size int64) (types.FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.FileResult{Path: path}, wrapOpenErr(path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		p.log.Warn("mmap failed, using buffered strategy", "path", path, "error", err)
		return p.processBuffered(ctx, path)
	}
	p.metrics.RecordMmap(uint64(len(m)))
	defer func() {
		p.metrics.RecordMunmap(uint64(len(m)))
		m.Unmap()
	}()

	data := []byte(m)
	if p.contextBefore == 0 && p.contextAfter == 0 && runtime.NumCPU() > 1 {
		return p.processMmapChunked(ctx, path, data)
	}

	st := p.newScan(path)
	if err := st.scanBuffer(ctx, data, 1, 0); err != nil {
		return types.FileResult{Path: path}, err
	}
	return st.result(size), nil
}

// processMmapChunked splits the mapping into line-aligned chunks and scans
// them in parallel. Chunk results concatenate in order, preserving global
// line numbering and per-line match ordering.
func (p *FileProcessor) processMmapChunked(ctx context.Context, path string, data []byte) (types.FileResult, error) {
	chunks := splitLineAligned(data, runtime.NumCPU())
	if len(chunks) < 2 {
		st := p.newScan(path)
		if err := st.scanBuffer(ctx, data, 1, 0); err != nil {
			return types.FileResult{Path: path}, err
		}
		return st.result(int64(len(data))), nil
	}

	// First line number of each chunk, from newline counts of the
	// preceding chunks.
	startLines := make([]int, len(chunks))
	line := 1
	for i, c := range chunks {
		startLines[i] = line
		line += bytes.Count(data[c.start:c.end], []byte{'\n'})
	}

	states := make([]*scanState, len(chunks))
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, start, end int) {
			defer wg.Done()
			st := p.newScan(path)
			states[i] = st
			errs[i] = st.scanBuffer(ctx, data[start:end], startLines[i], int64(start))
		}(i, c.start, c.end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return types.FileResult{Path: path}, err
		}
	}

	var all []types.Match
	for _, st := range states {
		all = append(all, st.matches...)
	}
	return types.FileResult{Path: path, Matches: all, BytesScanned: int64(len(data))}, nil
}

type chunk struct{ start, end int }

// splitLineAligned cuts data into at most n chunks whose boundaries fall
// just after a newline. Returns a single chunk when splits would be
// micro-partitioned.
func splitLineAligned(data []byte, n int) []chunk {
	const minChunk = 1 << 20 // 1 MiB
	if n < 2 || len(data) < 2*minChunk {
		return []chunk{{0, len(data)}}
	}
	if max := len(data) / minChunk; n > max {
		n = max
	}

	var chunks []chunk
	size := len(data) / n
	start := 0
	for start < len(data) {
		end := start + size
		if end >= len(data) {
			chunks = append(chunks, chunk{start, len(data)})
			break
		}
		nl := bytes.IndexByte(data[end:], '\n')
		if nl < 0 {
			chunks = append(chunks, chunk{start, len(data)})
			break
		}
		end += nl + 1
		chunks = append(chunks, chunk{start, end})
		start = end
	}
	return chunks
}

// readLine reads one terminator-inclusive line into buf, growing it as
// needed. Returns the line and io.EOF on the final unterminated line.
func readLine(r *bufio.Reader, buf *[]byte) ([]byte, error) {
	for {
		frag, err := r.ReadSlice('\n')
		*buf = append(*buf, frag...)
		if err != bufio.ErrBufferFull {
			return *buf, err
		}
	}
}

// trimTerminator strips one trailing LF or CRLF.
func trimTerminator(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}

// ringSlot is one reusable slot of the before-context ring buffer.
type ringSlot struct {
	lineNumber int
	text       string
}

// pendingRef points at a match still collecting after-context lines.
type pendingRef struct {
	idx       int
	remaining int
}

// scanState accumulates matches and context for one scanned region.
type scanState struct {
	p           *FileProcessor
	path        string
	matches     []types.Match
	ring        []ringSlot
	ringPos     int
	pending     []pendingRef
	lossyWarned bool
}

func (p *FileProcessor) newScan(path string) *scanState {
	return &scanState{
		p:    p,
		path: path,
		ring: make([]ringSlot, p.contextBefore+1),
	}
}

// scanBuffer walks a whole in-memory buffer line by line. firstLine is the
// global number of the buffer's first line and baseOffset its position in
// the file. Cancellation is checked periodically.
func (s *scanState) scanBuffer(ctx context.Context, data []byte, firstLine int, baseOffset int64) error {
	lineNumber := firstLine - 1
	start := 0
	for start <= len(data) {
		if start == len(data) {
			break
		}
		if lineNumber%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		end := bytes.IndexByte(data[start:], '\n')
		var next int
		var line []byte
		if end < 0 {
			line = data[start:]
			next = len(data)
		} else {
			line = data[start : start+end]
			next = start + end + 1
		}
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lineNumber++
		if err := s.line(lineNumber, line, baseOffset+int64(start)); err != nil {
			return err
		}
		start = next
	}
	return nil
}

// line scans a single terminator-free line. lineOffset is the byte offset
// of the line start within the file, used for encoding error reporting.
func (s *scanState) line(lineNumber int, raw []byte, lineOffset int64) error {
	var text string
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		switch s.p.encoding {
		case types.EncodingFailFast:
			return &types.EncodingError{
				Path:       s.path,
				ByteOffset: lineOffset + int64(firstInvalidByte(raw)),
			}
		default:
			if !s.lossyWarned {
				s.p.log.Warn("invalid UTF-8 replaced", "path", s.path, "line", lineNumber)
				s.lossyWarned = true
			}
			text = strings.ToValidUTF8(string(raw), "�")
		}
	}

	// Remember the line for before-context.
	slot := &s.ring[s.ringPos]
	slot.lineNumber = lineNumber
	slot.text = text
	currentPos := s.ringPos
	s.ringPos = (s.ringPos + 1) % len(s.ring)

	// Feed lines to matches still waiting on after-context.
	if len(s.pending) > 0 {
		kept := s.pending[:0]
		for _, ref := range s.pending {
			m := &s.matches[ref.idx]
			m.ContextAfter = append(m.ContextAfter, types.ContextLine{LineNumber: lineNumber, Text: text})
			if ref.remaining > 1 {
				kept = append(kept, pendingRef{idx: ref.idx, remaining: ref.remaining - 1})
			}
		}
		s.pending = kept
	}

	hits := s.p.set.Scan(text)
	if len(hits) == 0 {
		return nil
	}

	before := s.collectBefore(currentPos, lineNumber)
	for _, h := range hits {
		s.matches = append(s.matches, types.Match{
			LineNumber:    lineNumber,
			Start:         h.Start,
			End:           h.End,
			PatternIndex:  h.PatternIndex,
			LineText:      text,
			ContextBefore: before,
		})
		if s.p.contextAfter > 0 {
			s.pending = append(s.pending, pendingRef{
				idx:       len(s.matches) - 1,
				remaining: s.p.contextAfter,
			})
		}
	}
	return nil
}

// collectBefore returns up to contextBefore preceding lines in ascending
// order, stopping at the start of file or at ring slots that have been
// overwritten.
func (s *scanState) collectBefore(currentPos, currentLine int) []types.ContextLine {
	n := s.p.contextBefore
	if n == 0 {
		return nil
	}
	var rev []types.ContextLine
	for off := 1; off <= n; off++ {
		wanted := currentLine - off
		if wanted < 1 {
			break
		}
		idx := (len(s.ring) + currentPos - off) % len(s.ring)
		if s.ring[idx].lineNumber != wanted {
			break
		}
		rev = append(rev, types.ContextLine{LineNumber: wanted, Text: s.ring[idx].text})
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

func (s *scanState) result(bytesScanned int64) types.FileResult {
	return types.FileResult{
		Path:         s.path,
		Matches:      s.matches,
		BytesScanned: bytesScanned,
	}
}

// firstInvalidByte returns the offset of the first invalid UTF-8 byte.
func firstInvalidByte(b []byte) int {
	for i := 0; i < len(b); {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return 0
}
