package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ExactStore {
	t.Helper()
	store, err := NewExactStore(filepath.Join(t.TempDir(), "memories.json"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestExactStore_AddAndGetAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec, err := store.Add(ctx, "s1", "I prefer morning study sessions", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if rec.Owner != "s1" {
		t.Errorf("Owner = %q, want s1", rec.Owner)
	}
	if rec.ID == "" {
		t.Error("Expected a non-empty record ID")
	}

	all := store.GetAll(ctx, "s1")
	if len(all) != 1 {
		t.Fatalf("GetAll returned %d records, want 1", len(all))
	}
	if all[0].ID != rec.ID {
		t.Errorf("GetAll returned record %q, want %q", all[0].ID, rec.ID)
	}
}

func TestExactStore_ClockGovernsRecordTimes(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)

	store, err := NewExactStore(filepath.Join(t.TempDir(), "memories.json"),
		WithExactClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	rec, err := store.Add(ctx, "s1", "text", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, fixed)
	}
	if want := fmt.Sprintf("mem_0_%d", fixed.UnixNano()); rec.ID != want {
		t.Errorf("ID = %q, want %q", rec.ID, want)
	}
}

func TestExactStore_EmptyOwnerRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Add(ctx, "", "text", nil); err != ErrEmptyOwner {
		t.Errorf("Add with empty owner returned %v, want ErrEmptyOwner", err)
	}
}

func TestExactStore_Search(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Add(ctx, "s1", "I prefer morning study sessions", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, "s1", "I am taking CS101 this semester", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results := store.Search(ctx, "s1", "morning")
	if len(results) != 1 {
		t.Fatalf("Search returned %d records, want 1", len(results))
	}
	if results[0].Text != "I prefer morning study sessions" {
		t.Errorf("Search returned %q", results[0].Text)
	}

	// Matching ignores case.
	if got := store.Search(ctx, "s1", "MORNING"); len(got) != 1 {
		t.Errorf("Case-insensitive search returned %d records, want 1", len(got))
	}

	if got := store.Search(ctx, "s1", "swimming"); len(got) != 0 {
		t.Errorf("Search for absent text returned %d records, want 0", len(got))
	}
}

func TestExactStore_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Add(ctx, "s1", "s1 likes mornings", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, "s2", "s2 likes evenings", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for _, rec := range store.GetAll(ctx, "s2") {
		if rec.Owner != "s2" {
			t.Errorf("s2's GetAll leaked record owned by %q", rec.Owner)
		}
	}
	if got := store.Search(ctx, "s2", "mornings"); len(got) != 0 {
		t.Errorf("s2's search leaked %d of s1's records", len(got))
	}
}

func TestExactStore_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		if _, err := store.Add(ctx, "s1", text, nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	all := store.GetAll(ctx, "s1")
	if len(all) != len(texts) {
		t.Fatalf("GetAll returned %d records, want %d", len(all), len(texts))
	}
	for i, text := range texts {
		if all[i].Text != text {
			t.Errorf("Record %d = %q, want %q", i, all[i].Text, text)
		}
	}
}

func TestExactStore_DeleteAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Add(ctx, "s1", "something", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.DeleteAll(ctx, "s1"); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if got := store.GetAll(ctx, "s1"); len(got) != 0 {
		t.Errorf("GetAll after DeleteAll returned %d records, want 0", len(got))
	}

	// Deleting an owner with no records is a no-op, not an error.
	if err := store.DeleteAll(ctx, "nobody"); err != nil {
		t.Errorf("DeleteAll on empty owner returned %v, want nil", err)
	}
}

func TestExactStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec, err := store.Add(ctx, "s1", "original", nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.Update(ctx, "s1", rec.ID, "updated"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := store.GetAll(ctx, "s1"); got[0].Text != "updated" {
		t.Errorf("Text after update = %q, want updated", got[0].Text)
	}

	if err := store.Delete(ctx, "s1", rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := store.GetAll(ctx, "s1"); len(got) != 0 {
		t.Errorf("GetAll after Delete returned %d records, want 0", len(got))
	}

	if err := store.Update(ctx, "s1", "missing", "text"); err == nil {
		t.Error("Update of missing record should fail")
	}
}

func TestExactStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memories.json")

	store, err := NewExactStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	rec, err := store.Add(ctx, "s1", "I prefer morning study sessions", map[string]string{"kind": "preference"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	reopened, err := NewExactStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	all := reopened.GetAll(ctx, "s1")
	if len(all) != 1 {
		t.Fatalf("Reopened store returned %d records, want 1", len(all))
	}
	if all[0].ID != rec.ID || all[0].Text != rec.Text {
		t.Errorf("Reopened record = %+v, want %+v", all[0], rec)
	}
	if all[0].Metadata["kind"] != "preference" {
		t.Errorf("Metadata lost on reload: %v", all[0].Metadata)
	}
}

func TestFormatForContext(t *testing.T) {
	if got := FormatForContext(nil); got != NoMemoriesFound {
		t.Errorf("FormatForContext(nil) = %q, want %q", got, NoMemoriesFound)
	}

	records := []Record{
		{Text: "I prefer morning study sessions"},
		{Text: "I am taking CS101"},
	}
	want := "Previous memories about the user:\n1. I prefer morning study sessions\n2. I am taking CS101\n"
	if got := FormatForContext(records); got != want {
		t.Errorf("FormatForContext = %q, want %q", got, want)
	}
}
