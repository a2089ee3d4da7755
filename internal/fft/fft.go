// SPDX-License-Identifier: MIT

// Package fft implements a fixed-size, in-place radix-2 Fourier transform
// with precomputed bit-reversal and twiddle tables. Tables are built once
// per size so the transform itself never allocates.
package fft

import (
	"errors"
	"fmt"
	"math"

	"lipsync/pkg/bitint"
)

// ErrInvalidSize is returned when the requested transform size is not a
// positive power of two.
var ErrInvalidSize = errors.New("fft size must be a power of 2")

// Engine holds the tables for one transform size.
type Engine struct {
	size     int
	reversed []int        // bit-reversal permutation, len == size
	twiddles []complex128 // exp(-2πik/size), len == size/2
}

// New builds the bit-reversal and twiddle tables for an n-point transform.
func New(n int) (*Engine, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, n)
	}

	levels := bitint.Log2(n)
	reversed := make([]int, n)
	for i := range n {
		rev, cur := 0, i
		for range levels {
			rev = (rev << 1) | (cur & 1)
			cur >>= 1
		}
		reversed[i] = rev
	}

	twiddles := make([]complex128, n/2)
	for i := range twiddles {
		angle := -2 * math.Pi * float64(i) / float64(n)
		twiddles[i] = complex(math.Cos(angle), math.Sin(angle))
	}

	return &Engine{size: n, reversed: reversed, twiddles: twiddles}, nil
}

// Size returns the number of points the engine transforms.
func (e *Engine) Size() int {
	return e.size
}

// Transform replaces data with its discrete Fourier transform.
// len(data) must equal Size(); shorter or longer input is a programming
// error and the result is undefined.
func (e *Engine) Transform(data []complex128) {
	n := e.size
	data = data[:n]

	for i, r := range e.reversed {
		if i < r {
			data[i], data[r] = data[r], data[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		half := length >> 1
		step := n / length
		for i := 0; i < n; i += length {
			for j := range half {
				u := data[i+j]
				v := data[i+j+half] * e.twiddles[j*step]
				data[i+j] = u + v
				data[i+j+half] = u - v
			}
		}
	}
}
