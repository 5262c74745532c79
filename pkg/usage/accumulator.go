// Package usage keeps the running token count for a conversation.
package usage

import (
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Accumulator sums total tokens across successful responses. It is safe for
// concurrent use.
type Accumulator struct {
	mu    sync.Mutex
	total int
}

// NewAccumulator returns an Accumulator starting at zero.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add adds u.TotalTokens. Negative counts are ignored so the total never
// decreases between resets.
func (a *Accumulator) Add(u llm.Usage) {
	if u.TotalTokens <= 0 {
		return
	}
	a.mu.Lock()
	a.total += u.TotalTokens
	a.mu.Unlock()
}

// Set replaces the total, used when restoring a persisted conversation.
func (a *Accumulator) Set(total int) {
	if total < 0 {
		total = 0
	}
	a.mu.Lock()
	a.total = total
	a.mu.Unlock()
}

// Total returns the running total.
func (a *Accumulator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Reset sets the total back to zero.
func (a *Accumulator) Reset() {
	a.Set(0)
}
