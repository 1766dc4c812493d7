// Package chromem adapts chromem-go, a pure Go embedded vector database,
// to the memory.Index contract. Each owner gets their own collection for
// namespace isolation.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/campushq/studymate/memory"
)

// reserved metadata keys written by this adapter.
const (
	metaOwner     = "owner_id"
	metaCreatedAt = "created_at"
)

// Index stores memory records in per-owner chromem collections.
type Index struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
	// order tracks document IDs per owner in insertion order; chromem has no
	// listing API, so the adapter owns the backend order itself.
	order map[string][]string
}

// New creates an in-memory chromem index.
func New() (*Index, error) {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		order:       make(map[string][]string),
	}, nil
}

func collectionName(owner string) string {
	return fmt.Sprintf("owner_%s", owner)
}

func (ix *Index) collection(owner string) (*chromem.Collection, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if col, ok := ix.collections[owner]; ok {
		return col, nil
	}

	col, err := ix.db.GetOrCreateCollection(collectionName(owner), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	ix.collections[owner] = col
	return col, nil
}

// Insert saves a record with its embedding. An existing ID is replaced.
func (ix *Index) Insert(ctx context.Context, rec memory.Record, embedding []float32) error {
	col, err := ix.collection(rec.Owner)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		metaOwner:     rec.Owner,
		metaCreatedAt: rec.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}

	if err := col.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: embedding,
		Metadata:  metadata,
	}); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	ix.mu.Lock()
	if !containsID(ix.order[rec.Owner], rec.ID) {
		ix.order[rec.Owner] = append(ix.order[rec.Owner], rec.ID)
	}
	ix.mu.Unlock()

	log.Printf("[CHROMEM] Stored document %s for owner %s", rec.ID, rec.Owner)
	return nil
}

// Search returns up to limit records nearest to embedding, most similar first.
func (ix *Index) Search(ctx context.Context, owner string, embedding []float32, limit int) ([]memory.Record, error) {
	col, err := ix.collection(owner)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults greater than the collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, map[string]string{metaOwner: owner}, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	records := make([]memory.Record, 0, len(results))
	for _, res := range results {
		records = append(records, recordFromMetadata(res.ID, owner, res.Content, res.Metadata))
	}

	log.Printf("[CHROMEM] Query returned %d of %d documents for owner %s", len(records), count, owner)
	return records, nil
}

// All returns every record for owner in insertion order.
func (ix *Index) All(ctx context.Context, owner string) ([]memory.Record, error) {
	col, err := ix.collection(owner)
	if err != nil {
		return nil, err
	}

	ix.mu.Lock()
	ids := append([]string(nil), ix.order[owner]...)
	ix.mu.Unlock()

	records := make([]memory.Record, 0, len(ids))
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get document %s: %w", id, err)
		}
		records = append(records, recordFromMetadata(doc.ID, owner, doc.Content, doc.Metadata))
	}
	return records, nil
}

// Get retrieves a single record by ID.
func (ix *Index) Get(ctx context.Context, owner, id string) (memory.Record, error) {
	col, err := ix.collection(owner)
	if err != nil {
		return memory.Record{}, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return memory.Record{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return recordFromMetadata(doc.ID, owner, doc.Content, doc.Metadata), nil
}

// Remove deletes a single record.
func (ix *Index) Remove(ctx context.Context, owner, id string) error {
	col, err := ix.collection(owner)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	ix.mu.Lock()
	ids := ix.order[owner]
	for i, existing := range ids {
		if existing == id {
			ix.order[owner] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	ix.mu.Unlock()
	return nil
}

// RemoveAll drops the owner's collection entirely.
func (ix *Index) RemoveAll(ctx context.Context, owner string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.db.DeleteCollection(collectionName(owner)); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(ix.collections, owner)
	delete(ix.order, owner)

	log.Printf("[CHROMEM] Dropped collection for owner %s", owner)
	return nil
}

// Close releases resources. chromem keeps everything in memory, nothing to do.
func (ix *Index) Close() error {
	return nil
}

func recordFromMetadata(id, owner, content string, md map[string]string) memory.Record {
	createdAt, _ := time.Parse(time.RFC3339Nano, md[metaCreatedAt])

	metadata := make(map[string]string)
	for k, v := range md {
		if k == metaOwner || k == metaCreatedAt {
			continue
		}
		metadata[k] = v
	}

	return memory.Record{
		ID:        id,
		Owner:     owner,
		Text:      content,
		CreatedAt: createdAt,
		Metadata:  metadata,
	}
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
