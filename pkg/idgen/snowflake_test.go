package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_UniqueUnderConcurrency(t *testing.T) {
	g, err := NewSnowflake(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 2000
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestNewSnowflake_RejectsBadNode(t *testing.T) {
	_, err := NewSnowflake(MaxNode + 1)
	assert.Error(t, err)
	_, err = NewSnowflake(-1)
	assert.Error(t, err)
}

func TestReferences(t *testing.T) {
	a, b := GenerateReference(), GenerateReference()
	assert.True(t, strings.HasPrefix(a, "TXN"))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(GenerateOrderNo(), "AGO"))
}
