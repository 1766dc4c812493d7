// Package memory provides persistent, per-owner memory for the assistant.
//
// Two interchangeable Store implementations are provided:
//   - ExactStore: a local JSON-file store with case-insensitive substring
//     search. No external services, suitable for tests and offline use.
//   - SemanticStore: a thin adapter over a vector index and an embedding
//     capability, returning nearest neighbors by similarity.
//
// Both satisfy the same Store contract, so the engine never needs to know
// which backend is active.
//
// Architecture:
//   - Store: the memory contract (add, search, get-all, update, delete)
//   - Index: vector storage backend (chromem-go locally, pgvector in production)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for local use)
//   - Summarizer: optional compression of long text before storage
package memory
