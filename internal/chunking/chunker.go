// Package chunking normalises extracted document text and splits it into
// overlapping, boundary-aware chunks sized for embedding.
package chunking

import (
	"fmt"
	"unicode"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
)

const (
	// DefaultChunkSize is the target maximum number of characters per chunk.
	DefaultChunkSize = 1500

	// DefaultChunkOverlap is the number of trailing characters carried into the next chunk.
	DefaultChunkOverlap = 300

	// DefaultLookAhead bounds how far past the target end a hard split may
	// extend to reach a sentence boundary.
	DefaultLookAhead = 200
)

// DocumentInfo is the document-level metadata copied onto every chunk.
type DocumentInfo struct {
	Filename  string
	Title     string
	Author    string
	PageCount int
}

// Chunk is a contiguous span of a document's cleaned text.
// Offsets count characters (runes), not bytes.
type Chunk struct {
	ChunkID   int    // Position in document (0, 1, 2...)
	Text      string // Exactly the cleaned text between StartChar and EndChar
	StartChar int
	EndChar   int
	DocumentInfo
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.EndChar - c.StartChar
}

// Config controls chunk sizing.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	LookAhead    int
}

// DefaultConfig returns the sizing used for legal documents.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		LookAhead:    DefaultLookAhead,
	}
}

// Chunker splits cleaned text into paragraph-aggregated chunks.
// It holds no per-call state and is safe for concurrent use.
type Chunker struct {
	cfg Config
}

// NewChunker validates cfg and returns a Chunker.
func NewChunker(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, errs.Errorf(errs.Configuration, "new chunker", "chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, errs.Errorf(errs.Configuration, "new chunker",
			"chunk overlap must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.LookAhead < 0 {
		return nil, errs.Errorf(errs.Configuration, "new chunker", "look-ahead must not be negative, got %d", cfg.LookAhead)
	}
	return &Chunker{cfg: cfg}, nil
}

// String describes the chunker for logs.
func (c *Chunker) String() string {
	return fmt.Sprintf("chunker(size=%d, overlap=%d, lookahead=%d)", c.cfg.ChunkSize, c.cfg.ChunkOverlap, c.cfg.LookAhead)
}

// ChunkText splits cleaned text into chunks.
//
// Paragraphs (separated by a blank line) accumulate into a buffer until the next
// one would push it past ChunkSize. The buffer is then emitted and the next buffer
// is seeded with its trailing ChunkOverlap characters. A paragraph longer than
// ChunkSize is hard-split together with whatever the buffer holds, cutting at the
// last sentence end within LookAhead characters past each window.
//
// Chunks never leave a gap. When a paragraph of up to ChunkSize characters
// follows an emitted buffer and leaves no room for overlap, its chunk still
// starts right after the previous one, so it carries the blank-line separator
// and can run up to two characters past ChunkSize.
//
// Empty text yields no chunks.
func (c *Chunker) ChunkText(text string, info DocumentInfo) []Chunk {
	if text == "" {
		return nil
	}

	s := &splitter{
		runes:    []rune(text),
		cfg:      c.cfg,
		info:     info,
		bufStart: -1,
	}
	for _, p := range paragraphs(s.runes) {
		s.add(p)
	}
	s.flush()

	return s.chunks
}

type span struct {
	start, end int
}

// paragraphs returns the non-empty spans between blank-line separators.
func paragraphs(r []rune) []span {
	var out []span
	start := 0
	for i := 0; i < len(r); {
		if r[i] == '\n' && i+1 < len(r) && r[i+1] == '\n' {
			if i > start {
				out = append(out, span{start, i})
			}
			for i < len(r) && r[i] == '\n' {
				i++
			}
			start = i
			continue
		}
		i++
	}
	if start < len(r) {
		out = append(out, span{start, len(r)})
	}
	return out
}

// splitter carries the state of one ChunkText call.
// The buffer is always the span runes[bufStart:bufEnd]; it holds unemitted
// content only while bufEnd > lastEnd.
type splitter struct {
	runes  []rune
	cfg    Config
	info   DocumentInfo
	chunks []Chunk

	bufStart int
	bufEnd   int
	lastEnd  int
}

func (s *splitter) add(p span) {
	size := s.cfg.ChunkSize

	if s.bufStart < 0 {
		s.open(p.start, p.end, p.start)
		return
	}

	// Paragraph joins the buffer.
	if p.end-s.bufStart <= size {
		s.bufEnd = p.end
		return
	}

	// Paragraph cannot stand alone: split it together with the buffer.
	if p.end-p.start > size {
		s.open(s.bufStart, p.end, s.bufEnd)
		return
	}

	s.emitBuffer()

	// Clamped to bufEnd so the separator is not dropped.
	start := max(s.bufEnd-s.cfg.ChunkOverlap, s.bufStart, p.end-size)
	s.bufStart = min(start, s.bufEnd)
	s.bufEnd = p.end
}

// open makes [start, end) the buffer, hard-splitting it first while it is
// longer than ChunkSize. The first window never cuts before keep, so buffered
// paragraphs are not split. The final window stays buffered so following
// paragraphs can join it.
func (s *splitter) open(start, end, keep int) {
	for end-start > s.cfg.ChunkSize {
		cut := max(start+s.cfg.ChunkSize, keep)
		if b := s.sentenceBoundary(cut, min(cut+s.cfg.LookAhead, end)); b > 0 {
			cut = b
		}
		s.emit(start, cut)
		start = cut - s.cfg.ChunkOverlap
	}
	s.bufStart, s.bufEnd = start, end
}

// sentenceBoundary returns the position just after the last '.', '!' or '?'
// in [from, to) that is followed by whitespace, or -1.
func (s *splitter) sentenceBoundary(from, to int) int {
	for i := to - 1; i >= from; i-- {
		switch s.runes[i] {
		case '.', '!', '?':
			if i+1 < len(s.runes) && unicode.IsSpace(s.runes[i+1]) {
				return i + 1
			}
		}
	}
	return -1
}

func (s *splitter) emitBuffer() {
	if s.bufEnd > s.lastEnd {
		s.emit(s.bufStart, s.bufEnd)
	}
}

func (s *splitter) flush() {
	if s.bufStart >= 0 {
		s.emitBuffer()
	}
}

func (s *splitter) emit(start, end int) {
	s.chunks = append(s.chunks, Chunk{
		ChunkID:      len(s.chunks),
		Text:         string(s.runes[start:end]),
		StartChar:    start,
		EndChar:      end,
		DocumentInfo: s.info,
	})
	s.lastEnd = end
}
