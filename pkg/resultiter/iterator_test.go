package resultiter_test

import (
	"sync"
	"testing"

	"github.com/kwonwoo078/presto/pkg/resultiter"
	"github.com/stretchr/testify/assert"
)

func drain[T any](t *testing.T, it resultiter.ResultIterator[T]) []T {
	var ret []T
	for {
		ok, err := it.HasNext()
		assert.NoError(t, err)
		if !ok {
			return ret
		}
		v, err := it.Next()
		assert.NoError(t, err)
		ret = append(ret, v)
	}
}

func TestSlice(t *testing.T) {
	it := resultiter.NewSlice([]int{1, 2, 3})

	assert.Equal(t, []int{1, 2, 3}, drain[int](t, it))

	_, err := it.Next()
	assert.ErrorIs(t, err, resultiter.ErrExhausted)
}

type countingIterator struct {
	resultiter.ResultIterator[int]
	closes int
}

func (c *countingIterator) Close() error {
	c.closes++
	return c.ResultIterator.Close()
}

func TestSynchronizedClose(t *testing.T) {
	inner := &countingIterator{ResultIterator: resultiter.NewSlice([]int{1, 2})}
	it := resultiter.NewSynchronized[int](inner)

	v, err := it.Next()
	assert.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.NoError(t, it.Close())
	assert.NoError(t, it.Close())
	assert.Equal(t, 1, inner.closes)

	ok, err := it.HasNext()
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = it.Next()
	assert.ErrorIs(t, err, resultiter.ErrExhausted)
}

// must run with -race
func TestSynchronizedRacing(t *testing.T) {
	items := make([]int, 1000)
	it := resultiter.NewSynchronized[int](resultiter.NewSlice(items))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ok, _ := it.HasNext()
				if !ok {
					return
				}
				_, _ = it.Next()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = it.Close()
	}()
	wg.Wait()

	ok, err := it.HasNext()
	assert.NoError(t, err)
	assert.False(t, ok)
}
