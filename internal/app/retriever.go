package app

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"unicode/utf8"

	"studyhub/internal/model"
	"studyhub/internal/observability"
	"studyhub/internal/platform/logger"
	"studyhub/internal/repository"
)

const (
	defaultTopK           = 5
	defaultSampleMinChars = 100
	sampleFactor          = 2
)

type chunkSource interface {
	ListEmbeddedForUser(ctx context.Context, userID uint) ([]repository.ChunkRecord, error)
	ListForUser(ctx context.Context, userID uint) ([]repository.ChunkRecord, error)
}

type RetrievedChunk struct {
	ChunkID      uint    `json:"chunk_id"`
	DocumentID   uint    `json:"document_id"`
	ChunkIndex   int     `json:"chunk_index"`
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

type RetrieverConfig struct {
	TopK           int
	SampleMinChars int
}

// Retriever finds chunks of a user's completed documents. Both modes fail
// soft: storage errors are logged and yield an empty result.
type Retriever struct {
	chunks   chunkSource
	log      *logger.Logger
	metrics  *observability.Metrics
	topK     int
	minChars int
	shuffle  func(n int, swap func(i, j int))
}

func NewRetriever(chunks chunkSource, cfg RetrieverConfig, log *logger.Logger, metrics *observability.Metrics) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.SampleMinChars <= 0 {
		cfg.SampleMinChars = defaultSampleMinChars
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Retriever{
		chunks:   chunks,
		log:      log,
		metrics:  metrics,
		topK:     cfg.TopK,
		minChars: cfg.SampleMinChars,
		shuffle:  rand.Shuffle,
	}
}

// WithShuffle replaces the random permutation used by Sample.
func (r *Retriever) WithShuffle(shuffle func(n int, swap func(i, j int))) *Retriever {
	r.shuffle = shuffle
	return r
}

// Similar returns up to k chunks ranked by cosine similarity to query, ties
// broken by chunk id. k <= 0 uses the configured default. Chunks whose vector
// has a different dimension than query are not candidates.
func (r *Retriever) Similar(ctx context.Context, userID uint, query []float32, k int) []RetrievedChunk {
	if k <= 0 {
		k = r.topK
	}
	records, err := r.chunks.ListEmbeddedForUser(ctx, userID)
	if err != nil {
		r.log.Error("similarity retrieval failed", "user_id", userID, "err", err)
		r.metrics.ObserveRetrieval("similarity", 0, err)
		return []RetrievedChunk{}
	}

	scored := make([]RetrievedChunk, 0, len(records))
	for _, rec := range records {
		score, ok := CosineSimilarity(query, model.ParseVector(rec.Vector))
		if !ok {
			continue
		}
		scored = append(scored, toRetrieved(rec, score))
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	r.metrics.ObserveRetrieval("similarity", len(scored), nil)
	return scored
}

// Sample returns a random selection of at most 2*count chunks whose content
// is longer than the configured minimum.
func (r *Retriever) Sample(ctx context.Context, userID uint, count int) []RetrievedChunk {
	if count <= 0 {
		return []RetrievedChunk{}
	}
	records, err := r.chunks.ListForUser(ctx, userID)
	if err != nil {
		r.log.Error("sample retrieval failed", "user_id", userID, "err", err)
		r.metrics.ObserveRetrieval("sample", 0, err)
		return []RetrievedChunk{}
	}

	pool := make([]RetrievedChunk, 0, len(records))
	for _, rec := range records {
		if utf8.RuneCountInString(rec.Content) > r.minChars {
			pool = append(pool, toRetrieved(rec, 0))
		}
	}
	r.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if limit := sampleFactor * count; len(pool) > limit {
		pool = pool[:limit]
	}
	r.metrics.ObserveRetrieval("sample", len(pool), nil)
	return pool
}

// CosineSimilarity reports false when the vectors differ in length or either
// has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func toRetrieved(rec repository.ChunkRecord, score float64) RetrievedChunk {
	return RetrievedChunk{
		ChunkID:      rec.ChunkID,
		DocumentID:   rec.DocumentID,
		ChunkIndex:   rec.ChunkIndex,
		DocumentName: rec.DocumentName,
		Content:      rec.Content,
		Similarity:   score,
	}
}
