package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyOwner is returned by Add when no owner id is supplied.
// Every record must belong to exactly one owner.
var ErrEmptyOwner = errors.New("memory: owner id must not be empty")

// NoMemoriesFound is the exact string FormatForContext returns for an empty
// record set. Prompt assembly checks for this string to decide whether the
// assistant has anything to recall, so it must not change.
const NoMemoriesFound = "No previous memories found."

// Record is a single stored memory.
type Record struct {
	// ID is unique within a store.
	ID string

	// Owner identifies whose memory this is. Never empty.
	Owner string

	// Text is the memory content.
	Text string

	// CreatedAt is when the memory was first stored.
	CreatedAt time.Time

	// Metadata holds optional caller-supplied fields.
	Metadata map[string]string
}

// Store is the memory contract shared by the exact and semantic variants.
// The engine depends only on this interface; the backend is selected once
// at construction.
//
// Implementations:
//   - ExactStore: local JSON file, substring search, store order
//   - SemanticStore: vector index + embedder, similarity order
type Store interface {
	// Add persists one new record for owner. A persistence failure is
	// reported, never swallowed.
	Add(ctx context.Context, owner, text string, metadata map[string]string) (*Record, error)

	// Search returns records relevant to query, ranked by the variant's own
	// notion of relevance. On backend failure it degrades to an empty slice
	// rather than propagating the error.
	Search(ctx context.Context, owner, query string) []Record

	// GetAll returns every record for owner: insertion order for the exact
	// variant, backend order for the semantic variant.
	GetAll(ctx context.Context, owner string) []Record

	// Update replaces the text of an existing record.
	Update(ctx context.Context, owner, id, text string) error

	// Delete removes a single record permanently.
	Delete(ctx context.Context, owner, id string) error

	// DeleteAll removes every record for owner. Calling it for an owner with
	// no records is a no-op, not an error.
	DeleteAll(ctx context.Context, owner string) error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local), API-based (production).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Summarizer compresses free text before storage. Optional: the semantic
// store works without one.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Index is the vector storage backend behind SemanticStore.
// Ranking and top-k policy belong to the index, not the store.
type Index interface {
	// Insert saves a record with its embedding. Inserting an existing ID
	// replaces the stored record.
	Insert(ctx context.Context, rec Record, embedding []float32) error

	// Search returns up to limit records nearest to embedding, most similar
	// first, scoped to owner.
	Search(ctx context.Context, owner string, embedding []float32, limit int) ([]Record, error)

	// All returns every record for owner in backend order.
	All(ctx context.Context, owner string) ([]Record, error)

	// Get retrieves a single record by ID.
	Get(ctx context.Context, owner, id string) (Record, error)

	// Remove deletes a single record.
	Remove(ctx context.Context, owner, id string) error

	// RemoveAll deletes every record for owner.
	RemoveAll(ctx context.Context, owner string) error

	// Close releases resources.
	Close() error
}

// FormatForContext renders records as a numbered block for prompt injection.
// Returns NoMemoriesFound for an empty set.
func FormatForContext(records []Record) string {
	if len(records) == 0 {
		return NoMemoriesFound
	}

	var b strings.Builder
	b.WriteString("Previous memories about the user:\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec.Text)
	}
	return b.String()
}
