// SPDX-License-Identifier: MIT
package lipsync

// ring is a fixed-capacity window of equal-width feature frames stored in
// one flat slice. Pushing into a full ring overwrites the oldest frame.
type ring struct {
	width    int
	capacity int
	head     int // index of the oldest frame
	count    int
	data     []float32
}

func newRing(capacity, width int) *ring {
	return &ring{
		width:    width,
		capacity: capacity,
		data:     make([]float32, capacity*width),
	}
}

func (r *ring) Len() int { return r.count }
func (r *ring) Cap() int { return r.capacity }

func (r *ring) slot(i int) []float32 {
	off := i * r.width
	return r.data[off : off+r.width]
}

// Push copies frame into the ring, evicting the oldest frame when full.
func (r *ring) Push(frame []float32) {
	if r.capacity == 0 {
		return
	}
	if r.count < r.capacity {
		copy(r.slot((r.head+r.count)%r.capacity), frame)
		r.count++
		return
	}
	copy(r.slot(r.head), frame)
	r.head = (r.head + 1) % r.capacity
}

// Frame returns the i-th frame in chronological order. The slice aliases
// the ring.
func (r *ring) Frame(i int) []float32 {
	return r.slot((r.head + i) % r.capacity)
}

// Flatten appends all frames, oldest first, to dst.
func (r *ring) Flatten(dst []float32) []float32 {
	if r.count == 0 {
		return dst
	}
	// Two contiguous runs: head to the end of storage, then the wrapped part.
	end := r.head + r.count
	if end <= r.capacity {
		return append(dst, r.data[r.head*r.width:end*r.width]...)
	}
	dst = append(dst, r.data[r.head*r.width:]...)
	return append(dst, r.data[:(end-r.capacity)*r.width]...)
}

// Resize changes the capacity, keeping the newest frames that still fit.
func (r *ring) Resize(capacity int) {
	keep := min(r.count, capacity)
	data := make([]float32, capacity*r.width)
	for i := range keep {
		copy(data[i*r.width:(i+1)*r.width], r.Frame(r.count-keep+i))
	}
	r.data = data
	r.capacity = capacity
	r.head = 0
	r.count = keep
}

func (r *ring) Reset() {
	r.head = 0
	r.count = 0
}
