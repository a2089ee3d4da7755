// SPDX-License-Identifier: MIT
package lipsync

// queue accumulates resampled mono audio until a full hop is available.
// Reads advance an offset; Compact moves the unread tail to the front once
// per processing call instead of erasing on every pop.
type queue struct {
	data []float32
	read int
}

func (q *queue) Len() int { return len(q.data) - q.read }

// Pop returns the next n samples. The slice aliases the queue and is only
// valid until the next Compact or append.
func (q *queue) Pop(n int) []float32 {
	s := q.data[q.read : q.read+n]
	q.read += n
	return s
}

func (q *queue) Compact() {
	if q.read == 0 {
		return
	}
	n := copy(q.data, q.data[q.read:])
	q.data = q.data[:n]
	q.read = 0
}

func (q *queue) Reset() {
	q.data = q.data[:0]
	q.read = 0
}
