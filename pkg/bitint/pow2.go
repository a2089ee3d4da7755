/*
Package bitint provides the small bit manipulation helpers the feature
pipeline needs for FFT sizing: power-of-two checks, rounding up to the
next power of two, and the base-2 logarithm used to size bit-reversal
tables.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Reject an FFT size before building tables
	if !bitint.IsPowerOfTwo(nfft) { ... }

	// Suggest a usable size in a configuration error
	hint := bitint.NextPowerOfTwo(400) // Returns 512

	// Number of butterfly stages
	stages := bitint.Log2(1024) // Returns 10

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size 8:  bits.Len(7) = 3, 1<<3 = 8
	size 9:  bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. Powers of two have exactly
// one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and 0 otherwise. For a power of
// two this is the number of radix-2 stages of an n-point transform.
func Log2(n int) int {
	if n <= 0 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}
