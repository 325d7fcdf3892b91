// Package retrieval turns a free-text query into a ranked, score-filtered list
// of chunks for one owner.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/lexai-study/lexai-retrieval/internal/embedding"
	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

const (
	DefaultCoarseFloor     = 0.20
	DefaultOverlapBonus    = 0.1
	DefaultOverFetchFactor = 4
	DefaultShortQueryWords = 2
	DefaultTopK            = 5
	DefaultMinScore        = 0.5
)

// Config tunes the retrieval stages. Zero values take defaults.
type Config struct {
	// CoarseFloor drops candidates below this raw score before re-ranking.
	// nil uses DefaultCoarseFloor; a zero floor keeps every candidate.
	CoarseFloor     *float64
	OverlapBonus    float64 // Maximum score added for full lexical overlap
	OverFetchFactor int     // Candidates fetched per requested result
	ShortQueryWords int     // Queries with at most this many words are expanded
}

func (c Config) withDefaults() Config {
	if c.CoarseFloor == nil {
		floor := DefaultCoarseFloor
		c.CoarseFloor = &floor
	}
	if c.OverlapBonus <= 0 {
		c.OverlapBonus = DefaultOverlapBonus
	}
	if c.OverFetchFactor <= 0 {
		c.OverFetchFactor = DefaultOverFetchFactor
	}
	if c.ShortQueryWords <= 0 {
		c.ShortQueryWords = DefaultShortQueryWords
	}
	return c
}

// Query is one search request.
type Query struct {
	Text       string
	OwnerID    string
	DocumentID string // Optional: restrict to one document
	TopK       int
	MinScore   float64
}

// Defaults fills the parts of a Query a caller may leave out.
type Defaults struct {
	TopK     int
	MinScore float64
}

// Query builds a Query. A zero topK takes d.TopK and a nil minScore takes
// d.MinScore; anything else is passed through for Search to validate.
func (d Defaults) Query(text, ownerID, documentID string, topK int, minScore *float64) Query {
	q := Query{
		Text:       text,
		OwnerID:    ownerID,
		DocumentID: documentID,
		TopK:       topK,
		MinScore:   d.MinScore,
	}
	if q.TopK == 0 {
		q.TopK = d.TopK
	}
	if minScore != nil {
		q.MinScore = *minScore
	}
	return q
}

// Match is a re-ranked search result.
type Match struct {
	ID            string
	Score         float64 // Adjusted score, never below OriginalScore and never above 1
	OriginalScore float64 // Cosine similarity reported by the vector store
	Overlap       int     // Query words found in the chunk text
	storage.Metadata
}

// Retriever runs expansion, over-fetch, coarse filtering, re-ranking and the
// final threshold. It holds no per-query state.
type Retriever struct {
	embedder embedding.Embedder
	store    storage.VectorStore
	cfg      Config
	logger   *slog.Logger
}

// New creates a Retriever. If logger is nil, slog.Default() is used.
func New(embedder embedding.Embedder, store storage.VectorStore, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Search returns at most q.TopK matches scoring at least q.MinScore after
// re-ranking, ordered by adjusted score descending. No match is not an error.
func (r *Retriever) Search(ctx context.Context, q Query) ([]Match, error) {
	const op = "search"

	if err := validate(q); err != nil {
		return nil, err
	}

	start := time.Now()
	text := ExpandQuery(q.Text, r.cfg.ShortQueryWords)

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errs.E(errs.Embedding, op, err)
	}

	fetch := q.TopK * r.cfg.OverFetchFactor
	candidates, err := r.store.Query(ctx, vector, fetch, storage.Filter{OwnerID: q.OwnerID, DocumentID: q.DocumentID})
	if err != nil {
		r.logger.Error("vector query failed", "owner_id", q.OwnerID, "error", err)
		return nil, errs.E(errs.Store, op, err)
	}

	words := Words(q.Text)
	ranked := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < *r.cfg.CoarseFloor {
			continue
		}
		ranked = append(ranked, r.rerank(c, words))
	}
	afterFloor := len(ranked)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	out := ranked[:0]
	for _, m := range ranked {
		if m.Score >= q.MinScore {
			out = append(out, m)
		}
	}
	if len(out) > q.TopK {
		out = out[:q.TopK]
	}

	r.logger.Info("retrieval completed",
		"owner_id", q.OwnerID,
		"top_k", q.TopK,
		"expanded", text != q.Text,
		"candidates", len(candidates),
		"above_floor", afterFloor,
		"returned", len(out),
		"duration", time.Since(start))

	return out, nil
}

func validate(q Query) error {
	const op = "search"
	switch {
	case strings.TrimSpace(q.Text) == "":
		return errs.Errorf(errs.Invalid, op, "query is empty")
	case q.OwnerID == "":
		return errs.Errorf(errs.Invalid, op, "owner id is required")
	case q.TopK < 1:
		return errs.Errorf(errs.Invalid, op, "top_k must be at least 1, got %d", q.TopK)
	case q.MinScore < 0 || q.MinScore > 1:
		return errs.Errorf(errs.Invalid, op, "min_score must be in [0, 1], got %g", q.MinScore)
	}
	return nil
}

func (r *Retriever) rerank(c storage.Match, queryWords map[string]struct{}) Match {
	overlap, ratio := Overlap(queryWords, c.Metadata.Text)
	return Match{
		ID:            c.ID,
		Score:         AdjustScore(c.Score, ratio, r.cfg.OverlapBonus),
		OriginalScore: c.Score,
		Overlap:       overlap,
		Metadata:      c.Metadata,
	}
}

// ExpandQuery wraps queries of at most maxWords words in a template that
// gives the embedding model more context. Longer queries are returned as is.
func ExpandQuery(query string, maxWords int) string {
	q := strings.TrimSpace(query)
	if len(strings.Fields(q)) > maxWords {
		return query
	}
	return fmt.Sprintf("Information about %s. Details regarding %s.", q, q)
}

// Words returns the lowercased set of words in s. A word is a run of letters,
// digits or underscores.
func Words(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Overlap counts query words present in text and returns the count and its
// ratio to the number of query words.
func Overlap(queryWords map[string]struct{}, text string) (int, float64) {
	if len(queryWords) == 0 {
		return 0, 0
	}
	textWords := Words(text)
	n := 0
	for w := range queryWords {
		if _, ok := textWords[w]; ok {
			n++
		}
	}
	return n, float64(n) / float64(len(queryWords))
}

// AdjustScore adds ratio*bonus to score, capped at 1. The result is never
// below score.
func AdjustScore(score, ratio, bonus float64) float64 {
	adjusted := score + ratio*bonus
	if adjusted > 1 {
		adjusted = 1
	}
	return max(adjusted, score)
}
