package concurrent

import (
	"fmt"
	"sync"
)

// CompletionMap records which cache file holds each segment.
// It is a fixed slot array sized to the number of walked segments; every
// task writes only its own slot.
type CompletionMap struct {
	mu     sync.Mutex
	slots  []string
	filled int
}

// NewCompletionMap creates a map with room for size segments
func NewCompletionMap(size int) *CompletionMap {
	return &CompletionMap{slots: make([]string, size)}
}

// Set stores the file for a segment index
func (c *CompletionMap) Set(index int, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.slots) {
		panic(fmt.Sprintf("completion map: index %d out of range [0,%d)", index, len(c.slots)))
	}
	if c.slots[index] == "" {
		c.filled++
	}
	c.slots[index] = path
}

// Get returns the file recorded for index, if any
func (c *CompletionMap) Get(index int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.slots) || c.slots[index] == "" {
		return "", false
	}
	return c.slots[index], true
}

// Len returns how many slots are filled
func (c *CompletionMap) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filled
}

// Size returns the number of slots
func (c *CompletionMap) Size() int {
	return len(c.slots)
}

// Ordered returns the files in ascending segment order.
// A missing slot means a task was never drained, which is a bug, so it panics.
func (c *CompletionMap) Ordered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.slots))
	for i, p := range c.slots {
		if p == "" {
			panic(fmt.Sprintf("completion map: segment %d missing after drain", i))
		}
		out[i] = p
	}
	return out
}
