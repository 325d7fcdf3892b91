// Package answer writes cited answers to questions from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/openai/openai-go"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000

	// DefaultMaxContextTokens bounds the source text placed in the prompt.
	DefaultMaxContextTokens = 16000

	// PreviewChars is the length of a citation's text preview.
	PreviewChars = 200

	// NoContextAnswer is returned without calling the model when nothing was retrieved.
	NoContextAnswer = "I don't have any relevant information in your documents to answer this question. " +
		"Please upload documents related to your query."
)

const systemPrompt = "You are a helpful research assistant that provides accurate answers based on provided documents."

// Config tunes generation. Zero values take defaults.
type Config struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	MaxContextTokens int
}

// Citation is one source the answer refers to.
type Citation struct {
	SourceNumber int     `json:"source_number"`
	DocumentID   string  `json:"document_id"`
	Filename     string  `json:"filename"`
	Title        string  `json:"title,omitempty"`
	Author       string  `json:"author,omitempty"`
	ChunkID      int     `json:"chunk_id"`
	Preview      string  `json:"text_preview"`
	Score        float64 `json:"relevance_score"`
}

// Usage is the token accounting reported by the model.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Answer is a generated answer with its citations.
type Answer struct {
	Text        string     `json:"answer"`
	Citations   []Citation `json:"citations"`
	SourcesUsed int        `json:"context_chunks_used"`
	Model       string     `json:"model,omitempty"`
	Usage       Usage      `json:"usage"`
}

// Generator produces answers using an OpenAI chat model.
type Generator struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewGenerator creates an answer generator with the given OpenAI client.
func NewGenerator(client *openai.Client, cfg Config, logger *slog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, cfg: cfg, logger: logger}
}

// Answer asks the model to answer question from sources, citing them as [Source N].
// With no sources the fixed NoContextAnswer is returned and the model is not called.
func (g *Generator) Answer(ctx context.Context, question string, sources []retrieval.Match) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errs.Errorf(errs.Invalid, "answer", "question is empty")
	}
	if len(sources) == 0 {
		return &Answer{Text: NoContextAnswer, Citations: []Citation{}}, nil
	}

	sources = g.fitContext(sources)
	prompt := BuildPrompt(question, sources)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(g.cfg.Model),
		Temperature: openai.Float(g.cfg.Temperature),
		MaxTokens:   openai.Int(int64(g.cfg.MaxTokens)),
	})
	if err != nil {
		return nil, errs.E(errs.Generation, "answer", fmt.Errorf("chat completion failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, errs.Errorf(errs.Generation, "answer", "chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	ans := &Answer{
		Text:        text,
		Citations:   ExtractCitations(text, sources),
		SourcesUsed: len(sources),
		Model:       resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	g.logger.Info("Generated answer", "sources", len(sources), "citations", len(ans.Citations), "tokens", ans.Usage.TotalTokens)
	return ans, nil
}

// fitContext drops trailing sources once their text exceeds the context budget.
// Uses rough estimate of 4 characters per token. The first source is always kept.
func (g *Generator) fitContext(sources []retrieval.Match) []retrieval.Match {
	maxChars := g.cfg.MaxContextTokens * 4
	total := 0
	for i, s := range sources {
		total += len(s.Text)
		if total > maxChars && i > 0 {
			g.logger.Warn("Truncating answer context", "sources", len(sources), "kept", i, "max_chars", maxChars)
			return sources[:i]
		}
	}
	return sources
}

// BuildPrompt formats the question-answering prompt with numbered sources.
func BuildPrompt(question string, sources []retrieval.Match) string {
	var b strings.Builder
	for i, s := range sources {
		filename := s.Filename
		if filename == "" {
			filename = "Unknown"
		}
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "\n[Source %d: %s - %s]\n%s\n", i+1, filename, title, s.Text)
	}

	return fmt.Sprintf(`You are an intelligent research assistant helping users understand their legal documents.
Use ONLY the provided context to answer the question. Be precise, informative, and academic in tone.

CITATION RULES:
1. When you reference information, cite the source number in brackets like [Source 1] or [Source 2]
2. Use multiple citations when combining information: [Source 1, 2]
3. If the context doesn't contain the answer, say "I cannot find this information in your documents"
4. Never make up information not present in the context

CONTEXT FROM USER'S DOCUMENTS:
%s
QUESTION: %s

ANSWER (with citations):`, b.String(), question)
}

var citationPattern = regexp.MustCompile(`\[Source\s+(\d+(?:\s*,\s*\d+)*)\]`)

// ExtractCitations finds [Source N] and [Source N, M, ...] references in text
// and returns the cited sources in source-number order. Numbers outside
// the source list are ignored.
func ExtractCitations(text string, sources []retrieval.Match) []Citation {
	cited := make(map[int]struct{})
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err == nil && n >= 1 && n <= len(sources) {
				cited[n] = struct{}{}
			}
		}
	}

	nums := make([]int, 0, len(cited))
	for n := range cited {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	citations := make([]Citation, 0, len(nums))
	for _, n := range nums {
		s := sources[n-1]
		citations = append(citations, Citation{
			SourceNumber: n,
			DocumentID:   s.DocumentID,
			Filename:     s.Filename,
			Title:        s.Title,
			Author:       s.Author,
			ChunkID:      s.ChunkID,
			Preview:      preview(s.Text),
			Score:        s.Score,
		})
	}
	return citations
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= PreviewChars {
		return text
	}
	return string(r[:PreviewChars]) + "..."
}
