// Package vectorstore implements the file-persisted vector store: an ordered
// in-memory collection of (vector, text, metadata) records, ranked by exact
// brute-force cosine similarity and written through to a single JSON file on
// every mutation.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"sync"

	"go.uber.org/zap"

	"quero/internal/domain"
	queroerr "quero/pkg/errors"
)

// Record is one stored (vector, text, metadata) triple.
type Record struct {
	Vector   []float64      `json:"vector"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Compile-time interface check.
var _ domain.VectorStore = (*Store)(nil)

// Store is the persistent vector store. It is meant for a single owner; the
// mutex only keeps an append and its rewrite from interleaving with a search.
type Store struct {
	mu        sync.Mutex
	path      string
	embedder  domain.Embedder
	records   []Record
	dimension int
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and write-through events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open loads the store persisted at path. A missing file gives an empty store;
// a file that exists but does not hold a valid record array is an error.
func Open(path string, embedder domain.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, queroerr.New(queroerr.CodeStoreOpenInvalidInput, "embedder is required", queroerr.FieldPath(path))
	}
	s := &Store{path: path, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	records, err := loadRecords(path)
	if err != nil {
		return nil, err
	}
	s.records = records
	if len(records) > 0 {
		s.dimension = len(records[0].Vector)
	}
	s.logger.Info("vector store loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("dimension", s.dimension),
		zap.String("embedder", embedder.Name()))
	return s, nil
}

// AddDocuments embeds all item texts in one provider call, appends the new
// records and rewrites the persistence file. If the provider fails nothing
// changes. If the rewrite fails the records stay in memory and the error is
// returned; the next successful add writes the full sequence again.
func (s *Store) AddDocuments(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	texts := make([]string, len(items))
	metas := make([]map[string]any, len(items))
	for i, it := range items {
		meta, err := normalizeMetadata(it.Metadata)
		if err != nil {
			return queroerr.Wrap(err, queroerr.CodeStoreAddInvalidInput,
				fmt.Sprintf("item %d metadata is not JSON-encodable", i), queroerr.Field("item", i))
		}
		texts[i] = it.Text
		metas[i] = meta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return queroerr.Wrap(err, queroerr.CodeEmbeddingProviderFailure, "embedding documents",
			queroerr.FieldProvider(s.embedder.Name()), queroerr.Field("count", len(texts)))
	}
	if len(vectors) != len(texts) {
		return queroerr.New(queroerr.CodeEmbeddingProviderFailure,
			fmt.Sprintf("provider returned %d vectors for %d texts", len(vectors), len(texts)),
			queroerr.FieldProvider(s.embedder.Name()), queroerr.Field("count", len(texts)))
	}
	if i, ok := firstNonFinite(vectors); ok {
		return queroerr.New(queroerr.CodeEmbeddingProviderFailure,
			fmt.Sprintf("provider returned a non-finite value in vector %d", i),
			queroerr.FieldProvider(s.embedder.Name()), queroerr.Field("item", i))
	}
	dimension, err := s.checkDimensions(vectors)
	if err != nil {
		return err
	}

	for i := range items {
		s.records = append(s.records, Record{Vector: vectors[i], Text: texts[i], Metadata: metas[i]})
	}
	s.dimension = dimension

	n, err := writeRecords(s.path, s.records)
	if err != nil {
		s.logger.Warn("vector store write-through failed; memory is ahead of disk",
			zap.String("path", s.path), zap.Int("records", len(s.records)), zap.Error(err))
		return err
	}
	s.logger.Debug("vector store persisted",
		zap.String("path", s.path), zap.Int("records", len(s.records)), zap.Int("bytes", n))
	return nil
}

// SimilaritySearch embeds query and returns the k records most similar to it,
// highest score first. Fewer than k records are all returned; an empty store
// returns an empty result without contacting the provider.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, queroerr.New(queroerr.CodeStoreSearchInvalidInput,
			fmt.Sprintf("k must be at least 1, got %d", k), queroerr.Field("k", k))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return []domain.SearchResult{}, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, queroerr.Wrap(err, queroerr.CodeEmbeddingProviderFailure, "embedding query",
			queroerr.FieldProvider(s.embedder.Name()))
	}
	if len(vectors) != 1 {
		return nil, queroerr.New(queroerr.CodeEmbeddingProviderFailure,
			fmt.Sprintf("provider returned %d vectors for 1 query", len(vectors)),
			queroerr.FieldProvider(s.embedder.Name()))
	}
	qv := vectors[0]
	if _, ok := firstNonFinite(vectors); ok {
		return nil, queroerr.New(queroerr.CodeEmbeddingProviderFailure,
			"provider returned a non-finite value in the query vector",
			queroerr.FieldProvider(s.embedder.Name()))
	}
	if len(qv) != s.dimension {
		return nil, queroerr.New(queroerr.CodeStoreDimensionMismatch,
			fmt.Sprintf("query vector has dimension %d, store has %d", len(qv), s.dimension),
			queroerr.Field("dimension", len(qv)))
	}

	scores := rank(s.records, qv)
	if k > len(scores) {
		k = len(scores)
	}
	results := make([]domain.SearchResult, 0, k)
	for _, sc := range scores[:k] {
		r := s.records[sc.idx]
		results = append(results, domain.SearchResult{Text: r.Text, Metadata: maps.Clone(r.Metadata), Score: sc.score})
	}
	return results, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Dimension returns the vector length shared by all records, or 0 when empty.
func (s *Store) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimension
}

// Path returns the persistence file location.
func (s *Store) Path() string { return s.path }

// checkDimensions verifies a batch is uniform and agrees with stored records.
func (s *Store) checkDimensions(vectors [][]float64) (int, error) {
	dimension := s.dimension
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, queroerr.New(queroerr.CodeStoreDimensionMismatch,
				fmt.Sprintf("vector %d is empty", i), queroerr.Field("item", i))
		}
		if dimension == 0 {
			dimension = len(v)
			continue
		}
		if len(v) != dimension {
			return 0, queroerr.New(queroerr.CodeStoreDimensionMismatch,
				fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(v), dimension),
				queroerr.Field("item", i), queroerr.Field("dimension", len(v)))
		}
	}
	return dimension, nil
}

// firstNonFinite returns the index of the first vector holding NaN or Inf.
// Such values cannot be encoded as JSON, so they never reach the records.
func firstNonFinite(vectors [][]float64) (int, bool) {
	for i, v := range vectors {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return i, true
			}
		}
	}
	return 0, false
}

// normalizeMetadata passes metadata through a JSON round trip so the
// in-memory copy matches what a reload of the file produces.
func normalizeMetadata(meta map[string]any) (map[string]any, error) {
	if len(meta) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
