package testutil

import (
	"fmt"
	"sync"
)

// SequentialBatchIDs generates batch-0001, batch-0002, ... so committed
// batches compare byte-for-byte across runs.
//
// Unlike merge.FixedGenerator it never runs out, and it can be reset for test
// reuse. Safe for concurrent use.
type SequentialBatchIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialBatchIDs creates a generator. An empty prefix means "batch".
func NewSequentialBatchIDs(prefix string) *SequentialBatchIDs {
	if prefix == "" {
		prefix = "batch"
	}
	return &SequentialBatchIDs{prefix: prefix}
}

// Generate returns the next id. Implements merge.BatchIDGenerator.
func (g *SequentialBatchIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}

// Issued returns how many ids have been generated.
func (g *SequentialBatchIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset starts the sequence over.
func (g *SequentialBatchIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
