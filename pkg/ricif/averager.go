// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricif

import (
	"sync"
	"time"
)

// DefaultAverageWindow is the number of round trips averaged
const DefaultAverageWindow = 100

// Averager keeps a rolling average of the most recent durations
type Averager struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
	total   uint64
}

// NewAverager creates an averager over the last size samples
func NewAverager(size int) *Averager {
	if size <= 0 {
		size = DefaultAverageWindow
	}
	return &Averager{samples: make([]time.Duration, size)}
}

// Add records a sample, replacing the oldest once the window is full
func (a *Averager) Add(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.full {
		a.sum -= a.samples[a.next]
	}
	a.samples[a.next] = d
	a.sum += d
	a.total++
	a.next++
	if a.next == len(a.samples) {
		a.next = 0
		a.full = true
	}
}

// Average returns the mean of the samples in the window, 0 if none
func (a *Averager) Average() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.next
	if a.full {
		n = len(a.samples)
	}
	if n == 0 {
		return 0
	}
	return a.sum / time.Duration(n)
}

// Count returns the number of samples ever added
func (a *Averager) Count() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Reset discards all samples
func (a *Averager) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.samples)
	a.next = 0
	a.full = false
	a.sum = 0
	a.total = 0
}
