// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectorindex

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/northbound/corpus/internal/config"
)

// metadataValueLimit is the maximum length a string metadata value is
// allowed before Sanitize truncates it.
const metadataValueLimit = 2000

// upsertBatchSize is the maximum number of points sent in one Upsert call.
const upsertBatchSize = 100

// originalIDField and documentIDField are the payload keys every point
// carries regardless of caller-supplied metadata: the caller's item id
// (stored under `_point_id`) and its `document_id`.
const (
	originalIDField = "_point_id"
	documentIDField = "document_id"
)

// Item is one vector to upsert into a namespace.
type Item struct {
	ID         string
	DocumentID string
	Vector     []float32
	Metadata   map[string]string
}

// Match is one search hit.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Index describes the vector index operations the corpus engine needs,
// per §4.5: tenant-namespaced upsert, filtered top-k search, and
// document/namespace deletion.
type Index interface {
	Upsert(ctx context.Context, namespace string, items []Item) error
	Search(ctx context.Context, namespace string, queryVector []float32, k int, filter map[string]string) ([]Match, error)
	DeleteDocument(ctx context.Context, namespace, documentID string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Namespace builds the tenant-scoped namespace/collection name from a
// tenant (org) identifier.
func Namespace(tenant string) string {
	return "tenant_" + sanitizeCollectionName(tenant)
}

// EmployeeNamespace carries employee vectors in a collection separate
// from a tenant's document chunks, suffixing Namespace so the two
// never collide in the same index.
func EmployeeNamespace(tenant string) string {
	return Namespace(tenant) + "_people"
}

var collectionNameRe = strings.NewReplacer(":", "_", "/", "_", " ", "_")

func sanitizeCollectionName(s string) string {
	return collectionNameRe.Replace(s)
}

// Sanitize flattens an arbitrary metadata map down to the scalar/flat-array
// shape the index can store: strings, numbers, bools, and flat arrays of
// strings are kept (joined with "|"); anything else is dropped. Strings
// longer than metadataValueLimit are truncated.
func Sanitize(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = truncate(val)
		case []string:
			out[k] = truncate(strings.Join(val, "|"))
		case fmt.Stringer:
			out[k] = truncate(val.String())
		case bool, int, int32, int64, float32, float64:
			out[k] = truncate(fmt.Sprintf("%v", val))
		default:
			// Nested objects and unsupported types have no place in a
			// flat payload; silently dropped per §4.5.
		}
	}
	return out
}

func truncate(s string) string {
	if len(s) <= metadataValueLimit {
		return s
	}
	return s[:metadataValueLimit]
}

// QdrantIndex is the vector index backed by a Qdrant collection per
// tenant namespace, with lazy collection creation reading the
// embedder's reported dimension on first write.
type QdrantIndex struct {
	client    *qdrant.Client
	dimension int

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantIndex connects to the Qdrant gRPC endpoint named in cfg and
// prepares an index that creates collections lazily, sized to dim.
func NewQdrantIndex(cfg *config.Config, dim int) (*QdrantIndex, error) {
	host, portStr, err := net.SplitHostPort(cfg.VectorGRPCTarget)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid VECTOR_GRPC_TARGET %q: %w", cfg.VectorGRPCTarget, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid port in VECTOR_GRPC_TARGET %q: %w", cfg.VectorGRPCTarget, err)
	}

	qc := &qdrant.Config{Host: host, Port: port}
	if cfg.VectorAPIKey != "" {
		qc.APIKey = cfg.VectorAPIKey
	}

	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: connect to qdrant: %w", err)
	}

	if dim <= 0 {
		dim = 3072
	}

	return &QdrantIndex{
		client:    client,
		dimension: dim,
		ensured:   make(map[string]bool),
	}, nil
}

// ensureCollection lazily creates the per-tenant collection with cosine
// distance and the configured dimension, the first time a namespace is
// written to.
func (q *QdrantIndex) ensureCollection(ctx context.Context, namespace string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ensured[namespace] {
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection %s: %w", namespace, err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: namespace,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("vectorindex: create collection %s: %w", namespace, err)
		}
	}
	q.ensured[namespace] = true
	return nil
}

// pointID derives a deterministic Qdrant point UUID from a caller id that
// is not itself a UUID (Qdrant only accepts UUIDs or positive integers as
// point ids); the original id is preserved in the payload.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// Upsert stores items in batches of upsertBatchSize, creating the
// namespace's collection on first use.
func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, namespace); err != nil {
		return err
	}

	for start := 0; start < len(items); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		points := make([]*qdrant.PointStruct, 0, len(batch))
		for _, item := range batch {
			payload := make(map[string]any, len(item.Metadata)+2)
			for k, v := range item.Metadata {
				payload[k] = v
			}
			payload[originalIDField] = item.ID
			if item.DocumentID != "" {
				payload[documentIDField] = item.DocumentID
			}

			vec := make([]float32, len(item.Vector))
			copy(vec, item.Vector)

			points = append(points, &qdrant.PointStruct{
				Id:      pointID(item.ID),
				Vectors: qdrant.NewVectorsDense(vec),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: namespace,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("vectorindex: upsert batch into %s: %w", namespace, err)
		}
	}
	return nil
}

// Search performs a cosine-similarity top-k search, optionally narrowed
// by an exact-match payload filter (team, doc type, etc.).
func (q *QdrantIndex) Search(ctx context.Context, namespace string, queryVector []float32, k int, filter map[string]string) ([]Match, error) {
	if k <= 0 {
		k = 10
	}

	exists, err := q.client.CollectionExists(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: check collection %s: %w", namespace, err)
	}
	if !exists {
		return []Match{}, nil
	}

	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}

	vec := make([]float32, len(queryVector))
	copy(vec, queryVector)
	limit := uint64(k)

	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: namespace,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search %s: %w", namespace, err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]string, len(hit.Payload))
		id := hit.Id.GetUuid()
		for key, val := range hit.Payload {
			if key == originalIDField {
				if s := val.GetStringValue(); s != "" {
					id = s
				}
				continue
			}
			metadata[key] = val.GetStringValue()
		}
		matches = append(matches, Match{ID: id, Score: hit.Score, Metadata: metadata})
	}
	return matches, nil
}

// DeleteDocument removes every point belonging to documentID from the
// namespace, regardless of how many chunks it produced.
func (q *QdrantIndex) DeleteDocument(ctx context.Context, namespace, documentID string) error {
	exists, err := q.client.CollectionExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection %s: %w", namespace, err)
	}
	if !exists {
		return nil
	}

	selector := &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch(documentIDField, documentID)},
			},
		},
	}

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: namespace,
		Points:         selector,
	}); err != nil {
		return fmt.Errorf("vectorindex: delete document %s from %s: %w", documentID, namespace, err)
	}
	return nil
}

// DeleteNamespace drops an entire tenant's collection, e.g. on tenant
// offboarding.
func (q *QdrantIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	q.mu.Lock()
	delete(q.ensured, namespace)
	q.mu.Unlock()

	if err := q.client.DeleteCollection(ctx, namespace); err != nil {
		return fmt.Errorf("vectorindex: delete namespace %s: %w", namespace, err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
