package app

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexai-study/lexai-retrieval/internal/config"
	"github.com/lexai-study/lexai-retrieval/internal/errs"
	"github.com/lexai-study/lexai-retrieval/internal/library"
)

const testDim = 32

// bagOfWords embeds text by hashing its words into testDim buckets.
func bagOfWords(text string) []float64 {
	vec := make([]float64, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?")))
		vec[h.Sum32()%testDim]++
	}
	return vec
}

// fakeOpenAI serves /embeddings and /chat/completions.
func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			var req struct {
				Model string          `json:"model"`
				Input json.RawMessage `json:"input"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			var inputs []string
			if err := json.Unmarshal(req.Input, &inputs); err != nil {
				var one string
				assert.NoError(t, json.Unmarshal(req.Input, &one))
				inputs = []string{one}
			}
			data := make([]map[string]any, len(inputs))
			for i, in := range inputs {
				data[i] = map[string]any{"object": "embedding", "index": i, "embedding": bagOfWords(in)}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list", "data": data, "model": req.Model,
				"usage": map[string]any{"prompt_tokens": 1, "total_tokens": 1},
			})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "chatcmpl-1", "object": "chat.completion", "created": 1700000000, "model": "gpt-4o-mini",
				"choices": []map[string]any{{
					"index": 0, "finish_reason": "stop",
					"message": map[string]any{"role": "assistant", "content": "Payment is due within sixty days [Source 1]."},
				}},
				"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "QDRANT_HOST", "QDRANT_PORT", "DATABASE_URL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg, err := config.Load(filepath.Join("..", "config", "testdata", "empty.yaml"))
	require.NoError(t, err)

	cfg.OpenAI.APIKey = "test"
	cfg.OpenAI.BaseURL = baseURL
	cfg.Embedding.Dimension = testDim
	cfg.VectorStore.Backend = config.StoreMemory
	cfg.Chunking.ChunkSize = 200
	cfg.Chunking.ChunkOverlap = 40
	return cfg
}

func TestBuild_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := fakeOpenAI(t)

	a, err := Build(ctx, testConfig(t, srv.URL+"/"), nil)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Generator)

	text := strings.Repeat("The supplier shall deliver the goods within thirty days. ", 4) +
		"\n\n" + strings.Repeat("Payment is due within sixty days of delivery. ", 4)
	res, err := a.Library.Upload(ctx, library.UploadRequest{OwnerID: "u1", Filename: "supply.txt", Data: []byte(text)})
	require.NoError(t, err)
	assert.Greater(t, res.Record.ChunkCount, 1)

	minScore := 0.0
	matches, err := a.Library.Search(ctx, a.Query("payment due sixty days", "u1", "", 0, &minScore))
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Text, "Payment")

	ans, err := a.Ask(ctx, a.Query("When is payment due?", "u1", "", 3, &minScore))
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "[Source 1]")
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, res.Record.ID, ans.Citations[0].DocumentID)

	stats, err := a.Library.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(res.Record.ChunkCount), stats.TotalVectors)
	assert.Equal(t, testDim, stats.Dimension)
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Configuration))
	assert.Contains(t, err.Error(), "chunking.chunk_overlap")
}

func TestAsk_WithoutGenerator(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.OpenAI.APIKey = ""
	cfg.Embedding.Backend = config.BackendOllama

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Generator)
	_, err = a.Ask(context.Background(), a.Query("anything", "u1", "", 0, nil))
	assert.True(t, errs.Is(err, errs.Configuration))
}

func TestQueryDefaults(t *testing.T) {
	a := &App{Config: testConfig(t, "")}

	q := a.Query("lease", "u1", "d1", 0, nil)
	assert.Equal(t, 5, q.TopK)
	assert.Equal(t, 0.5, q.MinScore)
	assert.Equal(t, "d1", q.DocumentID)

	zero := 0.0
	q = a.Query("lease", "u1", "", 2, &zero)
	assert.Equal(t, 2, q.TopK)
	assert.Zero(t, q.MinScore)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}
