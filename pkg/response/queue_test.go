// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextQueueOrder(t *testing.T) {
	q := NewTextQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, "a"))
	require.NoError(t, q.Push(ctx, "b"))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"a", "b"}, q.Drain())
	assert.Nil(t, q.Drain())
}

func TestTextQueueFull(t *testing.T) {
	q := NewTextQueue(1)
	assert.True(t, q.TryPush("a"))
	assert.False(t, q.TryPush("b"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(ctx, "c"), context.DeadlineExceeded)
}

func TestTextQueueManyProducers(t *testing.T) {
	const producers, perProducer = 8, 50
	q := NewTextQueue(producers * perProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(context.Background(), fmt.Sprintf("%d:%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	assert.Len(t, q.Drain(), producers*perProducer)
}
