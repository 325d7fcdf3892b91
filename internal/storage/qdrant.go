package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

const vectorName = "content"

// QdrantConfig configures the Qdrant adapter.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
	BatchSize  int
}

// QdrantStore wraps the Qdrant client with connection management and health checks.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	batchSize  int
}

// NewQdrantStore creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant vector dimension must be positive, got %d", cfg.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		batchSize:  cfg.BatchSize,
	}
	if store.batchSize <= 0 {
		store.batchSize = DefaultBatchSize
	}

	if err := store.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Collection returns the collection name.
func (s *QdrantStore) Collection() string {
	return s.collection
}

// EnsureCollection creates the collection with cosine distance and payload indexes
// when it is missing. An existing collection must have the configured dimension.
// Idempotent - safe to call multiple times.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		dim, err := s.existingDimension(ctx)
		if err != nil {
			return err
		}
		return checkDimension("collection "+s.collection, dim, s.dimension)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

func (s *QdrantStore) existingDimension(ctx context.Context) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()[vectorName]
	if params == nil {
		return 0, fmt.Errorf("%w: collection %s has no %q vector", ErrCollectionNotFound, s.collection, vectorName)
	}
	return int(params.GetSize()), nil
}

// createPayloadIndexes creates keyword indexes for the filter fields.
// Without these, owner-scoped filtering degrades to a full scan.
func (s *QdrantStore) createPayloadIndexes(ctx context.Context) error {
	for _, field := range []string{"owner_id", "document_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upsert stores vectors in batches. Batches run sequentially and the first
// failure aborts the rest.
func (s *QdrantStore) Upsert(ctx context.Context, vectors []EmbeddedVector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := validateVectors(vectors, s.dimension); err != nil {
		return err
	}

	for _, b := range batches(len(vectors), s.batchSize) {
		batch := vectors[b[0]:b[1]]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, v := range batch {
			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(v.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(v.Values...),
				}),
				Payload: qdrant.NewValueMap(toPayload(v.Metadata)),
			}
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", b[0], b[1], err)
		}
	}

	return nil
}

// Query performs vector similarity search scoped by the filter.
func (s *QdrantStore) Query(ctx context.Context, values []float32, topK int, filter Filter) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if err := checkDimension("query", len(values), s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	name := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(values...),
		Using:          &name,
		Filter:         qdrantFilter(filter),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:       r.GetId().GetUuid(),
			Score:    float64(r.GetScore()),
			Metadata: fromPayload(r.GetPayload()),
		})
	}
	return matches, nil
}

// Delete removes every point belonging to the owner's document and waits for
// the operation to be applied.
func (s *QdrantStore) Delete(ctx context.Context, filter Filter) error {
	if err := filter.validateDelete(); err != nil {
		return err
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(qdrantFilter(filter)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// List scrolls through every point matching the filter.
func (s *QdrantStore) List(ctx context.Context, filter Filter) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	var (
		out    []Match
		offset *qdrant.PointId
		limit  = uint32(s.batchSize)
	)
	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         qdrantFilter(filter),
			Limit:          qdrant.PtrOf(limit + 1),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll vectors: %w", err)
		}

		// The scroll offset is inclusive: the extra point starts the next page.
		page := results
		if uint32(len(results)) > limit {
			page = results[:limit]
		}
		for _, r := range page {
			out = append(out, Match{ID: r.GetId().GetUuid(), Metadata: fromPayload(r.GetPayload())})
		}

		if uint32(len(results)) <= limit {
			break
		}
		offset = results[limit].GetId()
	}
	return out, nil
}

// Stats reports the collection's point count and dimension.
// Qdrant has no fixed capacity, so fullness is always 0.
func (s *QdrantStore) Stats(ctx context.Context) (*Stats, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}
	return &Stats{
		TotalVectors: info.GetPointsCount(),
		Dimension:    s.dimension,
	}, nil
}

func qdrantFilter(f Filter) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("owner_id", f.OwnerID),
	}
	if f.DocumentID != "" {
		must = append(must, qdrant.NewMatch("document_id", f.DocumentID))
	}
	return &qdrant.Filter{Must: must}
}

func toPayload(m Metadata) map[string]any {
	return map[string]any{
		"owner_id":    m.OwnerID,
		"document_id": m.DocumentID,
		"chunk_id":    m.ChunkID,
		"text":        m.Text,
		"filename":    m.Filename,
		"title":       m.Title,
		"author":      m.Author,
		"length":      m.Length,
		"start_char":  m.StartChar,
		"end_char":    m.EndChar,
	}
}

func fromPayload(p map[string]*qdrant.Value) Metadata {
	return Metadata{
		OwnerID:    p["owner_id"].GetStringValue(),
		DocumentID: p["document_id"].GetStringValue(),
		ChunkID:    int(p["chunk_id"].GetIntegerValue()),
		Text:       p["text"].GetStringValue(),
		Filename:   p["filename"].GetStringValue(),
		Title:      p["title"].GetStringValue(),
		Author:     p["author"].GetStringValue(),
		Length:     int(p["length"].GetIntegerValue()),
		StartChar:  int(p["start_char"].GetIntegerValue()),
		EndChar:    int(p["end_char"].GetIntegerValue()),
	}
}
