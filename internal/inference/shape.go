// SPDX-License-Identifier: MIT
package inference

import "fmt"

// ResolveShape fills the dynamic (negative) dimensions of static so the
// shape holds exactly count elements. The first dynamic dimension absorbs
// count divided by the product of the known ones; any further dynamic
// dimensions are set to 1. A fully static shape must match count exactly.
func ResolveShape(static []int64, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: empty input", ErrTensorShapeMismatch)
	}

	known := int64(1)
	dynamic := -1
	for i, d := range static {
		switch {
		case d < 0:
			if dynamic < 0 {
				dynamic = i
			}
		case d == 0:
			return nil, fmt.Errorf("%w: zero-sized dimension %d in %v", ErrTensorShapeMismatch, i, static)
		default:
			known *= d
		}
	}

	n := int64(count)
	shape := make([]int64, len(static))
	copy(shape, static)

	if dynamic < 0 {
		if known != n {
			return nil, fmt.Errorf("%w: model expects %d elements %v, got %d", ErrTensorShapeMismatch, known, static, count)
		}
		return shape, nil
	}

	if n%known != 0 {
		return nil, fmt.Errorf("%w: %d elements not divisible by static size %d of %v", ErrTensorShapeMismatch, count, known, static)
	}
	for i := range shape {
		if shape[i] < 0 {
			shape[i] = 1
		}
	}
	shape[dynamic] = n / known
	return shape, nil
}
