package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ExactStore is the local Store implementation. Records live in memory keyed
// by owner and are flushed to a single JSON document after every mutation.
// Search is case-insensitive substring containment in store order.
type ExactStore struct {
	path string
	now  func() time.Time

	mu       sync.Mutex
	memories map[string][]Record
}

// ExactOption configures an ExactStore.
type ExactOption func(*ExactStore)

// WithExactClock overrides the wall clock used for record IDs and creation
// times.
func WithExactClock(now func() time.Time) ExactOption {
	return func(s *ExactStore) {
		s.now = now
	}
}

// persistedRecord is the on-disk shape of a record. The owner is the map key,
// so it is not repeated per record.
type persistedRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata"`
}

// NewExactStore opens (or creates) the store file at path.
func NewExactStore(path string, opts ...ExactOption) (*ExactStore, error) {
	if path == "" {
		return nil, fmt.Errorf("memory: store path must not be empty")
	}

	s := &ExactStore{
		path:     path,
		now:      time.Now,
		memories: make(map[string][]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	return s, nil
}

// Add persists one new record for owner. The record is visible to callers
// only after the flush succeeds, so memory and disk never disagree.
func (s *ExactStore) Add(ctx context.Context, owner, text string, metadata map[string]string) (*Record, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := Record{
		ID:        fmt.Sprintf("mem_%d_%d", len(s.memories[owner]), now.UnixNano()),
		Owner:     owner,
		Text:      text,
		CreatedAt: now.UTC(),
		Metadata:  metadata,
	}

	s.memories[owner] = append(s.memories[owner], rec)
	if err := s.flush(); err != nil {
		// Roll back the append so the in-memory view matches disk.
		s.memories[owner] = s.memories[owner][:len(s.memories[owner])-1]
		return nil, fmt.Errorf("persist memory: %w", err)
	}

	log.Printf("[MEMORY] Added record %s for owner %s", rec.ID, owner)
	return &rec, nil
}

// Search returns records whose text contains query, ignoring case, in store
// order. No ranking beyond that.
func (s *ExactStore) Search(ctx context.Context, owner, query string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var matched []Record
	for _, rec := range s.memories[owner] {
		if strings.Contains(strings.ToLower(rec.Text), q) {
			matched = append(matched, rec)
		}
	}

	log.Printf("[MEMORY] Matched %d of %d records for owner %s", len(matched), len(s.memories[owner]), owner)
	return matched
}

// GetAll returns every record for owner in insertion order.
func (s *ExactStore) GetAll(ctx context.Context, owner string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.memories[owner]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out
}

// Update replaces the text of an existing record.
func (s *ExactStore) Update(ctx context.Context, owner, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.memories[owner]
	for i := range recs {
		if recs[i].ID == id {
			prev := recs[i].Text
			recs[i].Text = text
			if err := s.flush(); err != nil {
				recs[i].Text = prev
				return fmt.Errorf("persist memory: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("memory %s not found for owner %s", id, owner)
}

// Delete removes a single record permanently.
func (s *ExactStore) Delete(ctx context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.memories[owner]
	for i := range recs {
		if recs[i].ID == id {
			s.memories[owner] = append(recs[:i:i], recs[i+1:]...)
			if err := s.flush(); err != nil {
				s.memories[owner] = recs
				return fmt.Errorf("persist memory: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("memory %s not found for owner %s", id, owner)
}

// DeleteAll removes every record for owner. A missing owner is a no-op.
func (s *ExactStore) DeleteAll(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[owner]; !ok {
		return nil
	}

	delete(s.memories, owner)
	if err := s.flush(); err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}

	log.Printf("[MEMORY] Deleted all records for owner %s", owner)
	return nil
}

// load reads the store file. A missing file is an empty store.
func (s *ExactStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var persisted map[string][]persistedRecord
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("unmarshal store file: %w", err)
	}

	for owner, recs := range persisted {
		for _, pr := range recs {
			createdAt, _ := time.Parse(time.RFC3339Nano, pr.Timestamp)
			s.memories[owner] = append(s.memories[owner], Record{
				ID:        pr.ID,
				Owner:     owner,
				Text:      pr.Text,
				CreatedAt: createdAt,
				Metadata:  pr.Metadata,
			})
		}
	}
	return nil
}

// flush rewrites the whole store file. Write-then-rename keeps the file
// intact if the process dies mid-write. Callers hold s.mu.
func (s *ExactStore) flush() error {
	persisted := make(map[string][]persistedRecord, len(s.memories))
	for owner, recs := range s.memories {
		out := make([]persistedRecord, 0, len(recs))
		for _, rec := range recs {
			out = append(out, persistedRecord{
				ID:        rec.ID,
				Text:      rec.Text,
				Timestamp: rec.CreatedAt.Format(time.RFC3339Nano),
				Metadata:  rec.Metadata,
			})
		}
		persisted[owner] = out
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// DefaultStorePath returns the store file path under dir.
func DefaultStorePath(dir string) string {
	return filepath.Join(dir, "memories.json")
}
