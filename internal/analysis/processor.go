// SPDX-License-Identifier: MIT
package analysis

// FeatureExtractor turns one hop of mono samples into one feature frame.
// Implementations keep overlap state between calls and are not safe for
// concurrent use.
type FeatureExtractor interface {
	// ProcessFrameInto writes Settings().MelBands values into dst. It is
	// called once per hop from the processing path and must not allocate.
	ProcessFrameInto(dst, samples []float32) error
	Settings() Settings
	Reset()
}

// Compile-time check.
var _ FeatureExtractor = (*FrameProcessor)(nil)
