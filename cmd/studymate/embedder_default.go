//go:build !onnx

package main

import (
	"log"

	"github.com/campushq/studymate/memory"
	"github.com/campushq/studymate/memory/embedder/mock"
)

// newEmbedder falls back to the deterministic mock embedder when the binary
// is built without the onnx tag. Searches will not be semantically
// meaningful; build with -tags onnx for real similarity.
func newEmbedder() (memory.Embedder, error) {
	log.Println("Built without onnx tag: using mock embedder (no real semantic similarity)")
	return mock.New(), nil
}
