// SPDX-License-Identifier: MIT
package lipsync

import "time"

// Prediction is one model output as delivered to sinks.
type Prediction struct {
	Seq     uint64        `json:"seq"`
	Time    time.Time     `json:"time"`
	Offset  time.Duration `json:"offset"` // Stream position of the newest frame.
	Viseme  string        `json:"viseme,omitempty"`
	Weights []float32     `json:"weights"`
}

// Dominant returns the index and weight of the strongest viseme, or -1
// for an empty prediction.
func Dominant(weights []float32) (int, float32) {
	best, value := -1, float32(0)
	for i, w := range weights {
		if best < 0 || w > value {
			best, value = i, w
		}
	}
	return best, value
}

// Label returns labels[i], or "" when i is out of range.
func Label(labels []string, i int) string {
	if i < 0 || i >= len(labels) {
		return ""
	}
	return labels[i]
}

// NewPrediction labels weights with the dominant viseme name.
func NewPrediction(seq uint64, now time.Time, offset time.Duration, weights []float32, labels []string) Prediction {
	i, _ := Dominant(weights)
	return Prediction{
		Seq:     seq,
		Time:    now,
		Offset:  offset,
		Viseme:  Label(labels, i),
		Weights: weights,
	}
}
