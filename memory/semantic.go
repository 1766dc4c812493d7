package memory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
)

// Config holds SemanticStore tuning knobs.
type Config struct {
	// TopK is how many nearest neighbors Search asks the index for.
	TopK int

	// SummarizeOver is the text length, in bytes, above which Add runs the
	// summarizer before storage. Zero disables summarization even when a
	// summarizer is configured.
	SummarizeOver int

	// CacheSize bounds the embedding cache in bytes.
	CacheSize int64
}

// DefaultConfig returns sensible defaults for local use.
var DefaultConfig = &Config{
	TopK:          10,
	SummarizeOver: 500,
	CacheSize:     8 << 20,
}

// SemanticStore is the embedding-backed Store implementation. Storage and
// ranking are delegated to an Index; this type only vectorizes text and
// applies the Store contract's degradation rules. Repeated embedding calls
// for the same text are served from a ristretto cache.
type SemanticStore struct {
	index      Index
	embedder   Embedder
	summarizer Summarizer
	cache      *ristretto.Cache
	config     *Config
	now        func() time.Time
}

// SemanticOption configures a SemanticStore.
type SemanticOption func(*SemanticStore)

// WithSummarizer enables compression of long text before storage.
func WithSummarizer(s Summarizer) SemanticOption {
	return func(st *SemanticStore) {
		st.summarizer = s
	}
}

// WithSemanticClock overrides the wall clock used for record creation times.
func WithSemanticClock(now func() time.Time) SemanticOption {
	return func(st *SemanticStore) {
		st.now = now
	}
}

// NewSemanticStore creates a semantic store over the given index and embedder.
func NewSemanticStore(index Index, embedder Embedder, config *Config, opts ...SemanticOption) (*SemanticStore, error) {
	if index == nil {
		return nil, fmt.Errorf("memory: index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder is required")
	}
	if config == nil {
		config = DefaultConfig
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     config.CacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	s := &SemanticStore{
		index:    index,
		embedder: embedder,
		cache:    cache,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add vectorizes text and inserts it into the index. Long text is compressed
// by the summarizer first when one is configured; a summarizer failure falls
// back to storing the original text rather than losing the memory.
func (s *SemanticStore) Add(ctx context.Context, owner, text string, metadata map[string]string) (*Record, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}

	stored := text
	if s.summarizer != nil && s.config.SummarizeOver > 0 && len(text) > s.config.SummarizeOver {
		summary, err := s.summarizer.Summarize(ctx, text)
		if err != nil {
			log.Printf("[MEMORY] Summarize failed, storing original text: %v", err)
		} else if summary != "" {
			stored = summary
		}
	}

	embedding, err := s.embed(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("embed memory: %w", err)
	}

	rec := Record{
		ID:        uuid.New().String(),
		Owner:     owner,
		Text:      stored,
		CreatedAt: s.now().UTC(),
		Metadata:  metadata,
	}
	if err := s.index.Insert(ctx, rec, embedding); err != nil {
		return nil, fmt.Errorf("index memory: %w", err)
	}

	log.Printf("[MEMORY] Added record %s for owner %s", rec.ID, owner)
	return &rec, nil
}

// Search returns the index's nearest neighbors for query. Backend failures
// degrade to an empty result.
func (s *SemanticStore) Search(ctx context.Context, owner, query string) []Record {
	embedding, err := s.embed(ctx, query)
	if err != nil {
		log.Printf("[MEMORY] Embed query failed: %v", err)
		return nil
	}

	records, err := s.index.Search(ctx, owner, embedding, s.config.TopK)
	if err != nil {
		log.Printf("[MEMORY] Index search failed: %v", err)
		return nil
	}

	log.Printf("[MEMORY] Retrieved %d records for owner %s", len(records), owner)
	return records
}

// GetAll returns every record for owner in the index's own order.
func (s *SemanticStore) GetAll(ctx context.Context, owner string) []Record {
	records, err := s.index.All(ctx, owner)
	if err != nil {
		log.Printf("[MEMORY] Index list failed: %v", err)
		return nil
	}
	return records
}

// Update re-embeds the new text and replaces the stored record, keeping its
// creation time.
func (s *SemanticStore) Update(ctx context.Context, owner, id, text string) error {
	rec, err := s.index.Get(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("lookup memory %s: %w", id, err)
	}

	embedding, err := s.embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}

	rec.Text = text
	if err := s.index.Insert(ctx, rec, embedding); err != nil {
		return fmt.Errorf("index memory: %w", err)
	}
	return nil
}

// Delete removes a single record permanently.
func (s *SemanticStore) Delete(ctx context.Context, owner, id string) error {
	return s.index.Remove(ctx, owner, id)
}

// DeleteAll removes every record for owner.
func (s *SemanticStore) DeleteAll(ctx context.Context, owner string) error {
	if err := s.index.RemoveAll(ctx, owner); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	log.Printf("[MEMORY] Deleted all records for owner %s", owner)
	return nil
}

// embed returns the embedding for text, consulting the cache first.
func (s *SemanticStore) embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.cache.Get(text); ok {
		if embedding, ok := cached.([]float32); ok {
			return embedding, nil
		}
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.cache.Set(text, embedding, int64(len(embedding)*4))
	return embedding, nil
}
