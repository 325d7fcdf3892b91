package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexai-study/lexai-retrieval/internal/answer"
	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/indexer"
	"github.com/lexai-study/lexai-retrieval/internal/library"
	"github.com/lexai-study/lexai-retrieval/internal/records"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
	"github.com/lexai-study/lexai-retrieval/internal/storage"
)

const testDim = 32

// wordEmbedder hashes words into testDim buckets.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?")))
		vec[h.Sum32()%testDim]++
	}
	return vec, nil
}

func (e wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (wordEmbedder) Dimension() int { return testDim }
func (wordEmbedder) Name() string   { return "words" }

const lease = "The tenant shall pay rent on the first day of each month.\n\n" +
	"Either party may terminate this lease with sixty days written notice.\n\n" +
	"The landlord is responsible for structural repairs."

func newTestLibrary(t *testing.T) *library.Library {
	t.Helper()
	chunker, err := chunking.NewChunker(chunking.Config{ChunkSize: 80, ChunkOverlap: 10, LookAhead: 20})
	require.NoError(t, err)

	store := storage.NewMemoryStore(testDim, 0)
	emb := wordEmbedder{}
	p := indexer.NewPipeline(chunker, emb, store, retrieval.New(emb, store, retrieval.Config{}, nil), 0, nil)
	return library.New(p, records.NewMemoryStore(), nil)
}

func connect(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(cfg)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// call invokes a tool and decodes its structured output into out.
func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func errorText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestServer_ListTools(t *testing.T) {
	session := connect(t, Config{Library: newTestLibrary(t)})

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"search_documents", "get_document_chunks", "delete_document",
		"index_stats", "ask_documents", "ingest_document",
	}, names)
}

func TestServer_DocumentLifecycle(t *testing.T) {
	session := connect(t, Config{Library: newTestLibrary(t), Defaults: retrieval.Defaults{MinScore: 0.3}})

	var ingested IngestDocumentOutput
	res := call(t, session, "ingest_document", map[string]any{
		"owner_id": "u1", "filename": "residential_lease.txt", "text": lease,
	}, &ingested)
	require.False(t, res.IsError, errorText(res))
	assert.Equal(t, "residential lease.txt", ingested.Title)
	assert.Equal(t, 3, ingested.ChunkCount)
	docID := ingested.DocumentID

	var found SearchDocumentsOutput
	res = call(t, session, "search_documents", map[string]any{
		"owner_id": "u1", "query": "terminate lease notice", "top_k": 2,
	}, &found)
	require.False(t, res.IsError, errorText(res))
	require.NotEmpty(t, found.Results)
	assert.Contains(t, found.Results[0].Text, "terminate")
	assert.Equal(t, docID, found.Results[0].DocumentID)
	assert.GreaterOrEqual(t, found.Results[0].Score, found.Results[0].OriginalScore)

	var other SearchDocumentsOutput
	call(t, session, "search_documents", map[string]any{"owner_id": "u2", "query": "terminate lease notice"}, &other)
	assert.Empty(t, other.Results)
	assert.NotEmpty(t, other.Message)

	var chunks GetDocumentChunksOutput
	call(t, session, "get_document_chunks", map[string]any{"owner_id": "u1", "document_id": docID}, &chunks)
	require.True(t, chunks.Found)
	require.Len(t, chunks.Chunks, 3)
	for i, c := range chunks.Chunks {
		assert.Equal(t, i, c.ChunkID)
	}
	assert.Equal(t, "residential_lease.txt", chunks.Filename)

	var stats IndexStatsOutput
	call(t, session, "index_stats", map[string]any{"owner_id": "u1"}, &stats)
	assert.Equal(t, uint64(3), stats.TotalVectors)
	assert.Equal(t, testDim, stats.Dimension)
	require.Len(t, stats.Documents, 1)
	assert.Equal(t, docID, stats.Documents[0].DocumentID)

	var deleted DeleteDocumentOutput
	call(t, session, "delete_document", map[string]any{"owner_id": "u1", "document_id": docID}, &deleted)
	assert.True(t, deleted.Deleted)

	call(t, session, "get_document_chunks", map[string]any{"owner_id": "u1", "document_id": docID}, &chunks)
	assert.False(t, chunks.Found)
	assert.Empty(t, chunks.Chunks)
}

func TestServer_IngestErrors(t *testing.T) {
	session := connect(t, Config{Library: newTestLibrary(t)})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no content", map[string]any{"owner_id": "u1", "filename": "a.txt"}, "text or pdf_base64 is required"},
		{"both contents", map[string]any{"owner_id": "u1", "filename": "a.pdf", "text": "x", "pdf_base64": "eA=="}, "not both"},
		{"pdf without pdf name", map[string]any{"owner_id": "u1", "filename": "a.txt", "pdf_base64": "eA=="}, ".pdf filename"},
		{"bad base64", map[string]any{"owner_id": "u1", "filename": "a.pdf", "pdf_base64": "!!"}, "decode pdf_base64"},
		{"unreadable pdf", map[string]any{"owner_id": "u1", "filename": "a.pdf",
			"pdf_base64": base64.StdEncoding.EncodeToString([]byte("not a pdf"))}, "extraction_failure"},
		{"missing owner", map[string]any{"owner_id": "", "filename": "a.txt", "text": lease}, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, session, "ingest_document", tt.args, nil)
			assert.True(t, res.IsError)
			assert.Contains(t, errorText(res), tt.want)
		})
	}
}

func TestServer_SearchInvalid(t *testing.T) {
	session := connect(t, Config{Library: newTestLibrary(t)})

	res := call(t, session, "search_documents", map[string]any{"owner_id": "u1", "query": "   "}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "invalid_request")

	res = call(t, session, "search_documents", map[string]any{"owner_id": "u1", "query": "rent", "top_k": -1}, nil)
	assert.True(t, res.IsError)
	assert.Contains(t, errorText(res), "top_k must be at least 1")
}

func TestServer_Ask(t *testing.T) {
	lib := newTestLibrary(t)

	session := connect(t, Config{Library: lib})
	res := call(t, session, "ask_documents", map[string]any{"owner_id": "u1", "question": "When is rent due?"}, nil)
	assert.True(t, res.IsError, "no generator configured")
	assert.Contains(t, errorText(res), "configuration_failure")

	// With nothing retrieved the generator answers without calling the model.
	session = connect(t, Config{Library: lib, Generator: answer.NewGenerator(nil, answer.Config{}, nil)})
	var ans AskDocumentsOutput
	res = call(t, session, "ask_documents", map[string]any{"owner_id": "u1", "question": "When is rent due?"}, &ans)
	require.False(t, res.IsError, errorText(res))
	assert.Equal(t, answer.NoContextAnswer, ans.Text)
	assert.Empty(t, ans.Citations)
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"unreachable", assert.AnError, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(healthFunc(func(context.Context) error { return tt.err }))
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Status)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestMux(t *testing.T) {
	server := NewServer(Config{Library: newTestLibrary(t)})
	mux := NewMux(server, storage.NewMemoryStore(testDim, 0), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LexAI Retrieval")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
