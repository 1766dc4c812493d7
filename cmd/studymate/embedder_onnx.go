//go:build onnx

package main

import (
	"os"

	"github.com/campushq/studymate/memory"
	"github.com/campushq/studymate/memory/embedder/onnx"
)

// newEmbedder builds the local ONNX embedder. Model files are resolved from
// the environment so the binary stays relocatable.
func newEmbedder() (memory.Embedder, error) {
	modelPath := os.Getenv("ONNX_MODEL_PATH")
	if modelPath == "" {
		modelPath = "models/all-MiniLM-L6-v2/model.onnx"
	}
	tokenizerPath := os.Getenv("ONNX_TOKENIZER_PATH")
	if tokenizerPath == "" {
		tokenizerPath = "models/all-MiniLM-L6-v2/tokenizer.json"
	}

	return onnx.New(onnx.Config{
		ModelPath:     modelPath,
		TokenizerPath: tokenizerPath,
		LibraryPath:   os.Getenv("ONNX_LIBRARY_PATH"),
	})
}
