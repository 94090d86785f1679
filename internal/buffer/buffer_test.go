// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushDrainOrder(t *testing.T) {
	b := New[int]()
	b.Push(1)
	b.Push(2)
	b.Push(3)
	assert.Equal(t, []int{1, 2, 3}, b.Drain())
	assert.True(t, b.IsEmpty())
}

func TestDrainEmptyReturnsNil(t *testing.T) {
	b := New[int]()
	assert.Nil(t, b.Drain())
}

func TestDrainResetsBuffer(t *testing.T) {
	b := New[string]()
	b.Push("a")
	b.Drain()
	assert.Equal(t, 0, b.Len())
	b.Push("b")
	assert.Equal(t, []string{"b"}, b.Drain())
}

func TestConcurrentPush(t *testing.T) {
	b := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Push(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, b.Len())
	assert.Len(t, b.Drain(), 100)
}
