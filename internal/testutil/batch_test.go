package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialBatchIDs(t *testing.T) {
	gen := NewSequentialBatchIDs("")

	assert.Equal(t, "batch-0001", gen.Generate())
	assert.Equal(t, "batch-0002", gen.Generate())
	assert.Equal(t, int64(2), gen.Issued())

	gen.Reset()
	assert.Equal(t, "batch-0001", gen.Generate())

	custom := NewSequentialBatchIDs("import")
	assert.Equal(t, "import-0001", custom.Generate())
}

func TestSequentialBatchIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialBatchIDs("")

	var wg sync.WaitGroup
	seen := make(chan string, 1000)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seen <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]bool)
	for id := range seen {
		unique[id] = true
	}
	assert.Len(t, unique, 1000, "every id must be issued once")
}
