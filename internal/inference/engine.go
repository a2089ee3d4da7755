// SPDX-License-Identifier: MIT

// Package inference defines the model boundary the viseme pipeline calls
// into, and an ONNX Runtime implementation of it.
package inference

import "errors"

var (
	// ErrModelNotLoaded is returned by Run before a successful Load.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrTensorShapeMismatch is returned when the input cannot be shaped to
	// the model's static dimensions.
	ErrTensorShapeMismatch = errors.New("tensor shape mismatch")
	// ErrModelLoad wraps every failure to open or inspect a model file.
	ErrModelLoad = errors.New("model load failed")
)

// Engine runs a sequence model over a flat float32 tensor. The pipeline
// supplies frames × features values; the engine resolves the dynamic time
// dimension itself and returns the flat output, or an empty slice if the
// model produced nothing.
type Engine interface {
	// Load replaces the current model. On failure the previous model, if
	// any, stays active.
	Load(path string) error
	Run(input []float32) ([]float32, error)
	Loaded() bool
	Close() error
}
